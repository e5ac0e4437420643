// Package vad decides whether a captured phrase contains speech before it
// is sent to a recognizer.
package vad

import (
	"errors"
	"log/slog"

	"github.com/teslashibe/suradas/pkg/audioio"
)

// SampleRate is the rate every detector expects.
const SampleRate = 16000

// ErrModelUnavailable is returned when the Silero model cannot be loaded.
var ErrModelUnavailable = errors.New("vad: silero model unavailable")

// Detector reports whether 16 kHz mono PCM contains speech.
type Detector interface {
	HasSpeech(samples []int16) (bool, error)
	Name() string
	Close() error
}

// Energy is a Detector that looks for a minimum run of loud frames.
type Energy struct {
	// Threshold is the per-frame RMS in PCM16 units.
	Threshold float64
	// MinSpeechFrames is how many 30 ms frames must exceed Threshold.
	MinSpeechFrames int
}

// NewEnergy returns an energy detector with the given RMS threshold.
func NewEnergy(threshold float64) *Energy {
	return &Energy{Threshold: threshold, MinSpeechFrames: 3}
}

// HasSpeech implements Detector.
func (e *Energy) HasSpeech(samples []int16) (bool, error) {
	const frame = SampleRate * 30 / 1000
	loud := 0
	for off := 0; off+frame <= len(samples); off += frame {
		if audioio.RMS(samples[off:off+frame]) >= e.Threshold {
			loud++
			if loud >= e.MinSpeechFrames {
				return true, nil
			}
		}
	}
	return false, nil
}

// Name returns "energy".
func (e *Energy) Name() string { return "energy" }

// Close is a no-op.
func (e *Energy) Close() error { return nil }

// Config configures New.
type Config struct {
	// ModelPath points at silero_vad.onnx. Empty selects the energy detector.
	ModelPath string
	// Threshold is the Silero speech probability (0..1).
	Threshold float32
	// EnergyThreshold is used by the fallback detector.
	EnergyThreshold float64
}

// New returns a Silero detector when a model is configured and the binary
// was built with the "vad" tag, falling back to the energy detector.
func New(cfg Config, logger *slog.Logger) Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = 450
	}
	if cfg.ModelPath == "" {
		return NewEnergy(cfg.EnergyThreshold)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}

	d, err := newSilero(cfg)
	if err != nil {
		logger.Warn("silero vad unavailable, using energy detector", "error", err, "model", cfg.ModelPath)
		return NewEnergy(cfg.EnergyThreshold)
	}
	logger.Info("silero vad loaded", "model", cfg.ModelPath)
	return d
}
