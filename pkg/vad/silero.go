//go:build vad

package vad

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/teslashibe/suradas/pkg/audioio"
)

// Silero wraps the Silero ONNX voice activity model.
type Silero struct {
	mu  sync.Mutex
	det *speech.Detector
}

func newSilero(cfg Config) (Detector, error) {
	det, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           SampleRate,
		Threshold:            cfg.Threshold,
		MinSilenceDurationMs: 300,
		SpeechPadMs:          30,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return &Silero{det: det}, nil
}

// HasSpeech implements Detector.
func (s *Silero) HasSpeech(samples []int16) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments, err := s.det.Detect(audioio.SamplesToFloat32(samples))
	if err != nil {
		return false, fmt.Errorf("vad: detect: %w", err)
	}
	if err := s.det.Reset(); err != nil {
		return false, fmt.Errorf("vad: reset: %w", err)
	}
	return len(segments) > 0, nil
}

// Name returns "silero".
func (s *Silero) Name() string { return "silero" }

// Close releases the ONNX session.
func (s *Silero) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.det.Destroy()
}
