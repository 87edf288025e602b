package llm

import (
	"context"
	"sync"
)

// MockProvider is a scriptable Provider for tests.
type MockProvider struct {
	mu        sync.Mutex
	responses []*ChatResponse
	requests  []ChatRequest

	// ChatFunc, when set, overrides the scripted responses entirely.
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// SetResponse queues a text-only response.
func (m *MockProvider) SetResponse(content string) {
	m.QueueResponse(&ChatResponse{Content: content})
}

// QueueResponse appends a response to the script. Responses are consumed
// in order; the last one repeats once the script is exhausted.
func (m *MockProvider) QueueResponse(resp *ChatResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// Chat implements Provider.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return &ChatResponse{}, nil
	}
	idx := n - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// LastRequest returns the most recent request, or a zero request if none.
func (m *MockProvider) LastRequest() ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ChatRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// Requests returns all recorded requests.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
