package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
)

// MockSource is a Source for tests. It replays scripted chunks and then
// either repeats silence or returns io.EOF.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	script   []AudioChunk
	pos      int
	running  bool
	closed   bool
	eofAfter bool
	reads    int
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithChunks scripts the chunks returned by Read, in order.
func WithChunks(chunks ...AudioChunk) MockSourceOption {
	return func(m *MockSource) {
		m.script = append(m.script, chunks...)
	}
}

// WithEOF makes Read return io.EOF once the script is exhausted instead
// of producing silence.
func WithEOF() MockSourceOption {
	return func(m *MockSource) { m.eofAfter = true }
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins capture.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop halts capture.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Read returns the next scripted chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return AudioChunk{}, io.EOF
	}
	m.reads++

	if m.pos < len(m.script) {
		c := m.script[m.pos]
		m.pos++
		return c, nil
	}
	if m.eofAfter {
		return AudioChunk{}, io.EOF
	}
	return Silence(m.cfg, m.cfg.BufferDuration.Seconds()), nil
}

// Reads returns the number of Read calls made while running.
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return string(BackendMock) }

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

// MockSink records written audio.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	written []AudioChunk
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Write records the chunk after converting it to the sink's format.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.running {
		return io.ErrClosedPipe
	}
	m.written = append(m.written, AudioChunk{
		Samples:    prepare(chunk, m.cfg),
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	})
	return nil
}

// Written returns a copy of all chunks written so far.
func (m *MockSink) Written() []AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AudioChunk, len(m.written))
	copy(out, m.written)
	return out
}

// Samples returns the total number of samples written.
func (m *MockSink) Samples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.written {
		n += len(c.Samples)
	}
	return n
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return string(BackendMock) }

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

// Silence returns a zeroed chunk of the given length in seconds.
func Silence(cfg Config, seconds float64) AudioChunk {
	n := int(float64(cfg.SampleRate)*seconds) * cfg.Channels
	return AudioChunk{Samples: make([]int16, n), SampleRate: cfg.SampleRate, Channels: cfg.Channels}
}

// Tone returns a mono sine chunk at the given frequency and amplitude (0..1).
func Tone(sampleRate int, freq, amplitude, seconds float64) AudioChunk {
	n := int(float64(sampleRate) * seconds)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return AudioChunk{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
