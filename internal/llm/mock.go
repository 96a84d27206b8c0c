package llm

import (
	"context"
	"sync"

	"github.com/graphwright/graphwright/internal/types"
)

// MockProvider is a scripted Provider for tests. Responses are consumed in
// FIFO order; structured calls decode the scripted content through the same
// extraction path the real providers use, so malformed scripts surface the
// same COMPLETION_MALFORMED errors.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []CompletionRequest
}

// NewMockProvider creates an empty scripted provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Script queues a response to be returned by the next completion call.
func (m *MockProvider) Script(content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, content)
	m.errs = append(m.errs, nil)
	return m
}

// ScriptError queues an error to be returned by the next completion call.
func (m *MockProvider) ScriptError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, "")
	m.errs = append(m.errs, err)
	return m
}

// Calls returns a copy of every request the provider has seen.
func (m *MockProvider) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]CompletionRequest, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Name returns "mock".
func (m *MockProvider) Name() string { return "mock" }

// Complete pops the next scripted response.
func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.COMPLETION_FAILED, "completion cancelled", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if len(m.responses) == 0 {
		return nil, types.NewError(types.COMPLETION_FAILED, "mock provider has no scripted responses left")
	}

	content, err := m.responses[0], m.errs[0]
	m.responses = m.responses[1:]
	m.errs = m.errs[1:]

	if err != nil {
		return nil, err
	}
	return &CompletionResponse{Content: content, Model: "mock"}, nil
}

// CompleteStructured pops the next scripted response and decodes it into out.
func (m *MockProvider) CompleteStructured(ctx context.Context, req CompletionRequest, schema *types.JSONSchema, out any) error {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return err
	}
	return DecodeStructured(resp.Content, out)
}

// Health always reports healthy.
func (m *MockProvider) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("mock provider")
}
