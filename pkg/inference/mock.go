package inference

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider and Searcher for testing.
type Mock struct {
	// ChatFunc is called when Chat is invoked.
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// VisionFunc is called when Vision is invoked.
	VisionFunc func(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// SearchFunc is called when Search is invoked.
	SearchFunc func(ctx context.Context, query string) (*SearchResponse, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	// CapabilitiesOverride overrides default capabilities.
	CapabilitiesOverride *Capabilities

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	// Prompt is the last user text (Chat), the vision prompt, or the query.
	Prompt string
	Frames int
	Time   time.Time
}

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message:      NewAssistantMessage("Mock response"),
				FinishReason: "stop",
				Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
		VisionFunc: func(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
			return &VisionResponse{
				Content: "I see a mock image",
				Usage:   Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
			}, nil
		},
		SearchFunc: func(ctx context.Context, query string) (*SearchResponse, error) {
			return &SearchResponse{Content: "Mock search result"}, nil
		},
		HealthFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// Chat calls ChatFunc and records the call.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	prompt := ""
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}
	m.record(MockCall{Method: "Chat", Prompt: prompt})
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Vision calls VisionFunc and records the call.
func (m *Mock) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	m.record(MockCall{Method: "Vision", Prompt: req.Prompt, Frames: len(req.Frames)})
	if m.VisionFunc != nil {
		return m.VisionFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrVisionNotSupported)
}

// Search calls SearchFunc and records the call.
func (m *Mock) Search(ctx context.Context, query string) (*SearchResponse, error) {
	m.record(MockCall{Method: "Search", Prompt: query})
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Capabilities returns mock capabilities.
func (m *Mock) Capabilities() Capabilities {
	if m.CapabilitiesOverride != nil {
		return *m.CapabilitiesOverride
	}
	return Capabilities{
		Chat:   m.ChatFunc != nil,
		Vision: m.VisionFunc != nil,
		Search: m.SearchFunc != nil,
	}
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record(MockCall{Method: "Health"})
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record(MockCall{Method: "Close"})
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// record adds a call to the tracking list.
func (m *Mock) record(call MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call.Time = time.Now()
	m.calls = append(m.calls, call)
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return nil, err
		},
		VisionFunc: func(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
			return nil, err
		},
		SearchFunc: func(ctx context.Context, query string) (*SearchResponse, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Verify Mock implements Provider at compile time.
var (
	_ Provider = (*Mock)(nil)
	_ Searcher = (*Mock)(nil)
)
