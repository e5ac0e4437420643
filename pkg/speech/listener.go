package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/metrics"
	"github.com/teslashibe/suradas/pkg/stt"
	"github.com/teslashibe/suradas/pkg/vad"
)

var (
	// ErrNoMicrophone is returned when no capture source is configured.
	ErrNoMicrophone = errors.New("speech: microphone not available")

	// ErrWaitTimeout is returned when nobody starts speaking in time.
	ErrWaitTimeout = errors.New("speech: timed out waiting for phrase to start")

	// ErrBusy is returned when another Listen call holds the microphone.
	ErrBusy = errors.New("speech: already listening")
)

// ListenerConfig controls phrase capture.
type ListenerConfig struct {
	// PhraseTimeout is how long to wait for speech to begin.
	PhraseTimeout time.Duration
	// PauseThreshold is the silence that ends a phrase.
	PauseThreshold time.Duration
	// MaxPhrase caps a single phrase.
	MaxPhrase time.Duration
	// EnergyThreshold is the RMS level (PCM16 units) treated as speech.
	EnergyThreshold float64
	// PreRoll is audio kept from before the gate opened.
	PreRoll time.Duration
}

// DefaultListenerConfig returns the standard capture settings.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		PhraseTimeout:   5 * time.Second,
		PauseThreshold:  800 * time.Millisecond,
		MaxPhrase:       25 * time.Second,
		EnergyThreshold: 450,
		PreRoll:         500 * time.Millisecond,
	}
}

// Listener records one phrase at a time from a Source and recognizes it.
type Listener struct {
	src     audioio.Source
	rec     stt.Recognizer
	vad     vad.Detector
	cfg     ListenerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithVAD gates recognition on a voice activity detector.
func WithVAD(d vad.Detector) ListenerOption {
	return func(l *Listener) { l.vad = d }
}

// WithListenerConfig overrides the capture settings.
func WithListenerConfig(cfg ListenerConfig) ListenerOption {
	return func(l *Listener) { l.cfg = cfg }
}

// WithMetrics records turn latency.
func WithMetrics(m *metrics.Metrics) ListenerOption {
	return func(l *Listener) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger }
}

// NewListener creates a Listener. src may be nil, in which case Listen
// returns ErrNoMicrophone.
func NewListener(src audioio.Source, rec stt.Recognizer, opts ...ListenerOption) *Listener {
	l := &Listener{
		src:    src,
		rec:    rec,
		cfg:    DefaultListenerConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "speech.listener")
	return l
}

// Available reports whether a capture source is configured.
func (l *Listener) Available() bool {
	return l != nil && l.src != nil
}

// Listen captures one phrase and returns its transcript.
func (l *Listener) Listen(ctx context.Context) (*stt.Transcript, error) {
	if !l.Available() {
		return nil, ErrNoMicrophone
	}
	if !l.mu.TryLock() {
		return nil, ErrBusy
	}
	defer l.mu.Unlock()

	turn := l.metrics.NewTurn()
	samples, err := l.capture(ctx)
	if err != nil {
		return nil, err
	}
	turn.MarkSpeechEnd()

	if l.vad != nil {
		ok, err := l.vad.HasSpeech(samples)
		if err != nil {
			l.logger.Warn("vad failed, recognizing anyway", "error", err)
		} else if !ok {
			l.logger.Debug("phrase rejected by vad", "detector", l.vad.Name())
			return nil, stt.ErrNoSpeech
		}
	}

	start := time.Now()
	tr, err := l.rec.Recognize(ctx, samples)
	l.metrics.Since("recognize", start)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	turn.Mark(metrics.StageTranscript)
	return tr, nil
}

// Capture records one phrase as 16 kHz mono PCM16 without recognizing it.
func (l *Listener) Capture(ctx context.Context) ([]int16, error) {
	if !l.Available() {
		return nil, ErrNoMicrophone
	}
	if !l.mu.TryLock() {
		return nil, ErrBusy
	}
	defer l.mu.Unlock()
	return l.capture(ctx)
}

func (l *Listener) capture(ctx context.Context) ([]int16, error) {
	if !l.started {
		if err := l.src.Start(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoMicrophone, err)
		}
		l.started = true
	}

	gate := NewGate(l.cfg.EnergyThreshold, l.cfg.PauseThreshold)
	var (
		preRoll  []int16
		phrase   []int16
		waited   time.Duration
		recorded time.Duration
	)
	maxPreRoll := int(l.cfg.PreRoll.Seconds() * stt.SampleRate)

	// A silent remote source delivers no chunks at all, so the phrase
	// start timeout also runs on the wall clock.
	waitCtx, cancelWait := ctx, context.CancelFunc(func() {})
	if l.cfg.PhraseTimeout > 0 {
		waitCtx, cancelWait = context.WithTimeout(ctx, l.cfg.PhraseTimeout)
	}
	defer cancelWait()

	for {
		readCtx := ctx
		if !gate.Open() {
			readCtx = waitCtx
		}
		chunk, err := l.src.Read(readCtx)
		if err != nil {
			if !gate.Open() && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrWaitTimeout
			}
			if errors.Is(err, io.EOF) && gate.Open() {
				break
			}
			if errors.Is(err, io.EOF) {
				l.started = false
				return nil, ErrWaitTimeout
			}
			return nil, err
		}

		mono := chunk.Mono()
		samples := audioio.Resample(mono.Samples, mono.SampleRate, stt.SampleRate)
		d := mono.Duration()
		rms := audioio.RMS(samples)

		wasOpen := gate.Open()
		gate.Feed(rms, d)

		if !wasOpen && !gate.Open() {
			waited += d
			preRoll = append(preRoll, samples...)
			if len(preRoll) > maxPreRoll {
				preRoll = preRoll[len(preRoll)-maxPreRoll:]
			}
			if l.cfg.PhraseTimeout > 0 && waited >= l.cfg.PhraseTimeout {
				return nil, ErrWaitTimeout
			}
			continue
		}

		if !wasOpen {
			l.logger.Debug("phrase started", "rms", rms, "waited", waited)
			phrase = append(phrase, preRoll...)
			preRoll = nil
		}
		phrase = append(phrase, samples...)
		recorded += d

		if !gate.Open() {
			l.logger.Debug("phrase ended", "duration", recorded)
			// Drop the trailing pause beyond a short tail.
			tail := int((gate.Silence() - 200*time.Millisecond).Seconds() * stt.SampleRate)
			if tail > 0 && tail < len(phrase) {
				phrase = phrase[:len(phrase)-tail]
			}
			break
		}
		if recorded >= l.cfg.MaxPhrase {
			l.logger.Debug("phrase hit max length", "duration", recorded)
			break
		}
	}

	return phrase, nil
}

// Close stops the capture source.
func (l *Listener) Close() error {
	if !l.Available() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Close()
}
