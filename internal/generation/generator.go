package generation

import (
	"context"
	"fmt"
	"strings"

	"leadpilot/internal/lead"
	"leadpilot/internal/llm"
	"leadpilot/internal/logging"
	"leadpilot/internal/planner"
	"leadpilot/internal/traits"
)

// StepInput carries everything a single generation call needs.
type StepInput struct {
	Step    string
	Lead    lead.Context
	Traits  traits.Set
	Plan    planner.Plan
	Attempt int // 1-based

	// PriorIssues holds reviewer findings from the rejected attempt, if any.
	PriorIssues []string

	// PriorMessages are approved messages from earlier steps of this run.
	PriorMessages []Message
}

// Generator produces one candidate message per call.
type Generator struct {
	client      llm.Client
	maxTokens   int
	temperature float64
}

// NewGenerator wraps a text-generation client.
func NewGenerator(client llm.Client, maxTokens int, temperature float64) *Generator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Generator{client: client, maxTokens: maxTokens, temperature: temperature}
}

// Generate renders the step prompt, makes exactly one client call, and parses
// the response into a Message. Retrying is the caller's responsibility.
func (g *Generator) Generate(ctx context.Context, in StepInput) (Message, error) {
	prompt, err := buildPrompt(buildPromptContext(
		in.Step, in.Lead, in.Traits, in.Plan, in.Attempt, in.PriorIssues, in.PriorMessages))
	if err != nil {
		return Message{}, err
	}

	logging.Gen("Generating step=%s lead=%s attempt=%d prior_issues=%d",
		in.Step, in.Lead.ID, in.Attempt, len(in.PriorIssues))

	raw, err := g.client.Generate(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return Message{}, fmt.Errorf("step %q generation failed: %w", in.Step, err)
	}

	subject, body := parseResponse(raw)
	if body == "" {
		return Message{}, fmt.Errorf("%w: empty body in response for step %q", llm.ErrGenerationFailed, in.Step)
	}

	return Message{
		Step:    in.Step,
		Subject: subject,
		Body:    body,
		Attempt: in.Attempt,
	}, nil
}

// parseResponse extracts the subject and body from a "Subject: ...\n\nBody: ..."
// response. Models do not always follow the format, so fall back to treating
// the whole response as the body with a first-line subject.
func parseResponse(raw string) (subject, body string) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	lower := strings.ToLower(text)
	subjIdx := strings.Index(lower, "subject:")
	bodyIdx := strings.Index(lower, "body:")

	if subjIdx >= 0 && bodyIdx > subjIdx {
		subject = strings.TrimSpace(text[subjIdx+len("subject:") : bodyIdx])
		body = strings.TrimSpace(text[bodyIdx+len("body:"):])
		return subject, body
	}

	if subjIdx >= 0 {
		rest := text[subjIdx+len("subject:"):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			return strings.TrimSpace(rest[:nl]), strings.TrimSpace(rest[nl+1:])
		}
		return strings.TrimSpace(rest), ""
	}

	// No markers at all. First line becomes the subject if the response is
	// multi-line, otherwise everything is body.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		return strings.TrimSpace(text[:nl]), strings.TrimSpace(text[nl+1:])
	}
	return "", text
}
