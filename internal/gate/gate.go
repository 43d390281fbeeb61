// Package gate holds the pass/retry/escalate decision taken after each
// message review. The gate is a pure function with no state and no I/O.
package gate

// Decision is the outcome for one reviewed message attempt.
type Decision string

const (
	Approve  Decision = "approve"
	Retry    Decision = "retry"
	Escalate Decision = "escalate"
)

// Evaluate decides what happens to a reviewed message.
//
// attempt is zero-based: 0 means the first generation, so with maxRetries=2
// a step gets at most three generations before escalating.
func Evaluate(overall float64, attempt int, threshold float64, maxRetries int) Decision {
	if overall >= threshold {
		return Approve
	}
	if attempt < maxRetries {
		return Retry
	}
	return Escalate
}
