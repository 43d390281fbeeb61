package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		overall    float64
		attempt    int
		threshold  float64
		maxRetries int
		want       Decision
	}{
		{"passes at threshold", 80, 0, 80, 2, Approve},
		{"passes above threshold", 95.5, 0, 80, 2, Approve},
		{"passes even on last attempt", 81, 2, 80, 2, Approve},
		{"fails first attempt retries", 79.9, 0, 80, 2, Retry},
		{"fails second attempt retries", 50, 1, 80, 2, Retry},
		{"fails final attempt escalates", 79.9, 2, 80, 2, Escalate},
		{"zero retries escalates immediately", 50, 0, 80, 0, Escalate},
		{"zero score first attempt retries", 0, 0, 80, 2, Retry},
		{"zero score final attempt escalates", 0, 2, 80, 2, Escalate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.overall, tt.attempt, tt.threshold, tt.maxRetries)
			assert.Equal(t, tt.want, got)
		})
	}
}

// A passing score approves regardless of attempt count, and an exhausted
// attempt count with a failing score always escalates.
func TestEvaluate_Monotonicity(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		assert.Equal(t, Approve, Evaluate(80, attempt, 80, 2))
	}
	for score := 0.0; score < 80; score += 7.3 {
		assert.Equal(t, Escalate, Evaluate(score, 2, 80, 2))
	}
}
