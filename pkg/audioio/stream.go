package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// StreamSource is a Source fed by Push. The WebRTC ingest and the browser
// microphone websocket push decoded PCM into it so the listener can treat
// remote audio like a local microphone.
type StreamSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	ch      chan AudioChunk
	running bool
	closed  bool

	dropped atomic.Int64
}

// NewStreamSource creates a push-fed source. Chunks are converted to
// cfg's rate and channel count on Push.
func NewStreamSource(cfg Config, logger *slog.Logger) *StreamSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.stream"),
		ch:     make(chan AudioChunk, 64),
	}
}

// Push enqueues a chunk. It never blocks; when the queue is full the
// chunk is dropped and false is returned.
func (s *StreamSource) Push(chunk AudioChunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}

	out := AudioChunk{
		Samples:    prepare(chunk, s.cfg),
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	}
	select {
	case s.ch <- out:
		return true
	default:
		if n := s.dropped.Add(1); n%50 == 1 {
			s.logger.Warn("audio queue full, dropping", "dropped", n)
		}
		return false
	}
}

// Start enables Push.
func (s *StreamSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	s.running = true
	s.ch = make(chan AudioChunk, 64)
	return nil
}

// Stop disables Push; pending chunks remain readable until drained.
func (s *StreamSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.ch)
	return nil
}

// Read returns the next pushed chunk or io.EOF after Stop.
func (s *StreamSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.ch
	running := s.running
	s.mu.Unlock()
	if !running && len(ch) == 0 {
		return AudioChunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Dropped returns how many chunks were discarded because the queue was full.
func (s *StreamSource) Dropped() int64 { return s.dropped.Load() }

// Config returns the audio configuration.
func (s *StreamSource) Config() Config { return s.cfg }

// Name returns "stream".
func (s *StreamSource) Name() string { return "stream" }

// Close stops the source permanently.
func (s *StreamSource) Close() error {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ Source = (*StreamSource)(nil)
