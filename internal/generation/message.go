// Package generation builds per-step prompts and turns text-generation
// responses into candidate outreach messages. One invocation makes exactly
// one call to the external service; transport retries live with the caller.
package generation

// Message is one candidate outreach message for a plan step.
type Message struct {
	Step    string `json:"step"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Attempt int    `json:"attempt"` // generation attempt that produced it, 1-based
}
