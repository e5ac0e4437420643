package stt

import (
	"context"
	"sync"
)

// Mock is a Recognizer for tests.
type Mock struct {
	mu sync.Mutex

	// RecognizeFunc overrides the default behavior.
	RecognizeFunc func(ctx context.Context, samples []int16) (*Transcript, error)

	// Text is returned when RecognizeFunc is nil.
	Text string

	calls [][]int16
}

// NewMock returns a recognizer that always hears text.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// Recognize implements Recognizer.
func (m *Mock) Recognize(ctx context.Context, samples []int16) (*Transcript, error) {
	m.mu.Lock()
	m.calls = append(m.calls, samples)
	fn := m.RecognizeFunc
	text := m.Text
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, samples)
	}
	if text == "" {
		return nil, ErrNoSpeech
	}
	return &Transcript{Text: text, Confidence: 1, Backend: "mock"}, nil
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Calls returns how many times Recognize was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ Recognizer = (*Mock)(nil)
