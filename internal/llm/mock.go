package llm

import (
	"context"
	"sync"

	"github.com/ard14n/AJETE/api/schemas"
)

// MockClient is the deterministic double used in tests and dry runs. It
// replays scripted responses in order, repeating the last one when the
// script runs out.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	calls     int
	Requests  []schemas.GenerationRequest
}

var _ schemas.VisionClient = (*MockClient)(nil)

// Generate implements schemas.VisionClient.
func (m *MockClient) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	i := m.calls
	m.calls++

	if i < len(m.Errs) && m.Errs[i] != nil {
		return "", m.Errs[i]
	}
	if len(m.Responses) == 0 {
		return `{"thought": "Nothing scripted.", "action": "wait"}`, nil
	}
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// Calls returns how many times Generate ran.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
