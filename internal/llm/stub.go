package llm

import (
	"context"
	"fmt"
	"sync"
)

// StubClient returns canned responses without making network calls. Used by
// tests and by the CLI --dry-run mode.
type StubClient struct {
	mu sync.Mutex

	// Responses are returned in order; the last one repeats when exhausted.
	Responses []string

	// Err, when set, is returned on every call (or for the first FailCalls
	// calls when that is set too).
	Err       error
	FailCalls int

	calls   int
	Prompts []string
}

// NewStubClient returns a stub that echoes a plausible subject/body pair.
func NewStubClient() *StubClient {
	return &StubClient{Responses: []string{
		"Subject: A quick idea for your team\n\nBody: I noticed your work and wanted to share a thought on how we could help. Would you be open to a short call next week?",
	}}
}

// Generate returns the next canned response.
func (s *StubClient) Generate(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.Prompts = append(s.Prompts, req.Prompt)

	if s.Err != nil && (s.FailCalls == 0 || s.calls <= s.FailCalls) {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, s.Err)
	}
	if len(s.Responses) == 0 {
		return "", fmt.Errorf("%w: stub has no responses", ErrGenerationFailed)
	}

	idx := s.calls - 1
	if idx >= len(s.Responses) {
		idx = len(s.Responses) - 1
	}
	return s.Responses[idx], nil
}

// Calls returns how many times Generate was invoked.
func (s *StubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
