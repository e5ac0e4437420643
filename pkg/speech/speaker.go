package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/suradas/pkg/audioio"
	"github.com/teslashibe/suradas/pkg/metrics"
	"github.com/teslashibe/suradas/pkg/tts"
)

// Clip is one spoken reply, ready for a browser.
type Clip struct {
	Text     string        `json:"text"`
	WAV      []byte        `json:"-"`
	Duration time.Duration `json:"duration"`
	Provider string        `json:"provider"`
}

// ClipFunc receives every synthesized clip.
type ClipFunc func(Clip)

// Speaker synthesizes text and plays it locally and/or hands it to
// subscribers such as the web audio hub. Replies are spoken one at a time.
type Speaker struct {
	provider tts.Provider
	sink     audioio.Sink
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	subs     []ClipFunc
	sinkOpen bool
}

// NewSpeaker creates a Speaker. sink may be nil when there is no local
// speaker; provider may be nil to disable speech entirely.
func NewSpeaker(provider tts.Provider, sink audioio.Sink, m *metrics.Metrics, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		provider: provider,
		sink:     sink,
		metrics:  m,
		logger:   logger.With("component", "speech.speaker"),
	}
}

// Enabled reports whether a TTS provider is configured.
func (s *Speaker) Enabled() bool {
	return s != nil && s.provider != nil
}

// OnClip registers fn to receive synthesized clips.
func (s *Speaker) OnClip(fn ClipFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Speak synthesizes text and plays it. It blocks until local playback
// has been handed to the device.
func (s *Speaker) Speak(ctx context.Context, text string) (*Clip, error) {
	if !s.Enabled() {
		return nil, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	start := time.Now()
	result, err := s.provider.Synthesize(ctx, text)
	s.metrics.Since("synthesize", start)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	wav, err := result.WAV()
	if err != nil {
		return nil, fmt.Errorf("encode clip: %w", err)
	}
	clip := Clip{Text: text, WAV: wav, Duration: result.Duration, Provider: result.Provider}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fn := range s.subs {
		fn(clip)
	}

	if s.sink != nil {
		if !s.sinkOpen {
			if err := s.sink.Start(ctx); err != nil {
				return &clip, fmt.Errorf("start speaker: %w", err)
			}
			s.sinkOpen = true
		}
		if err := s.sink.Write(ctx, result.Chunk()); err != nil {
			return &clip, fmt.Errorf("play: %w", err)
		}
	}

	s.logger.Debug("spoke", "chars", len(text), "duration", result.Duration, "provider", result.Provider)
	return &clip, nil
}

// Close releases the provider and sink.
func (s *Speaker) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.sink != nil {
		err = s.sink.Close()
	}
	if s.provider != nil {
		if cerr := s.provider.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}
