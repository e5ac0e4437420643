package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/suradas/pkg/metrics"
)

// Grabber stores the last frame delivered by a producer. Producers call
// Put; consumers call Frame for a snapshot or Wait to block until one
// arrives. Subscribers are notified of every frame, which the web preview
// uses to fan frames out to browsers.
type Grabber struct {
	name    string
	cfg     Config
	metrics *metrics.Metrics

	mu     sync.RWMutex
	frame  []byte
	at     time.Time
	seq    uint64
	ready  chan struct{}
	closed bool

	subMu  sync.RWMutex
	subs   map[int]func([]byte)
	nextID int
}

// GrabberOption configures a Grabber.
type GrabberOption func(*Grabber)

// WithConfig sets MaxAge and WaitTimeout from cfg.
func WithConfig(cfg Config) GrabberOption {
	return func(g *Grabber) { g.cfg = cfg }
}

// WithMetrics counts delivered frames.
func WithMetrics(m *metrics.Metrics) GrabberOption {
	return func(g *Grabber) { g.metrics = m }
}

// NewGrabber creates an empty grabber named after its producer.
func NewGrabber(name string, opts ...GrabberOption) *Grabber {
	g := &Grabber{
		name:  name,
		cfg:   DefaultConfig(),
		ready: make(chan struct{}),
		subs:  make(map[int]func([]byte)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Put replaces the latest frame. Empty frames are ignored.
func (g *Grabber) Put(jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}
	frame := make([]byte, len(jpeg))
	copy(frame, jpeg)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.frame = frame
	g.at = time.Now()
	g.seq++
	close(g.ready)
	g.ready = make(chan struct{})
	g.mu.Unlock()

	g.metrics.Frame()

	g.subMu.RLock()
	for _, fn := range g.subs {
		fn(frame)
	}
	g.subMu.RUnlock()
}

// Latest returns the current frame without waiting.
func (g *Grabber) Latest() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.latestLocked()
}

func (g *Grabber) latestLocked() ([]byte, error) {
	if g.closed {
		return nil, ErrClosed
	}
	if g.frame == nil {
		return nil, ErrNoFrame
	}
	if g.cfg.MaxAge > 0 && time.Since(g.at) > g.cfg.MaxAge {
		return nil, fmt.Errorf("%w (%s old)", ErrStale, time.Since(g.at).Round(time.Second))
	}
	return g.frame, nil
}

// Wait blocks until a frame is available or ctx is done.
func (g *Grabber) Wait(ctx context.Context) ([]byte, error) {
	for {
		g.mu.RLock()
		frame, err := g.latestLocked()
		ready := g.ready
		g.mu.RUnlock()

		if err == nil {
			return frame, nil
		}
		if errors.Is(err, ErrClosed) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", err, ctx.Err())
		case <-ready:
		}
	}
}

// Frame returns the latest frame, waiting up to WaitTimeout for the
// first one to arrive.
func (g *Grabber) Frame(ctx context.Context) ([]byte, error) {
	if frame, err := g.Latest(); err == nil {
		return frame, nil
	}
	if g.cfg.WaitTimeout <= 0 {
		return g.Latest()
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.WaitTimeout)
	defer cancel()
	return g.Wait(ctx)
}

// Subscribe registers fn for every new frame and returns a cancel func.
// fn runs on the producer's goroutine and must not block.
func (g *Grabber) Subscribe(fn func([]byte)) func() {
	g.subMu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.subMu.Unlock()

	return func() {
		g.subMu.Lock()
		delete(g.subs, id)
		g.subMu.Unlock()
	}
}

// Stats returns the number of frames received and when the last arrived.
func (g *Grabber) Stats() (uint64, time.Time) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seq, g.at
}

// Name returns the producer name.
func (g *Grabber) Name() string { return g.name }

// Close drops the frame and wakes waiters.
func (g *Grabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.frame = nil
	close(g.ready)
	return nil
}

var _ Source = (*Grabber)(nil)
