// Package tts provides a unified interface for text-to-speech providers.
//
// Backends: espeak (local engine, the default), OpenAI and Google Cloud
// Text-to-Speech. All providers return mono PCM16 so the result can be
// played on an audioio.Sink or wrapped as WAV for the browser.
//
// Example usage:
//
//	provider, _ := tts.NewEspeak(tts.WithVoice("en-us"))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world")
//	samples := result.Samples()
package tts

import (
	"context"
	"time"

	"github.com/teslashibe/suradas/pkg/audioio"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the provider can be used.
	Health(ctx context.Context) error

	// Name identifies the provider in logs and errors.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio is little-endian PCM16.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the total synthesis time in milliseconds.
	LatencyMs int64

	// Provider names the backend that produced the audio.
	Provider string
}

// Samples returns the audio as PCM16 samples.
func (r *AudioResult) Samples() []int16 {
	return audioio.BytesToSamples(r.Audio)
}

// Chunk returns the audio as an audioio chunk.
func (r *AudioResult) Chunk() audioio.AudioChunk {
	ch := r.Format.Channels
	if ch == 0 {
		ch = 1
	}
	return audioio.AudioChunk{Samples: r.Samples(), SampleRate: r.Format.SampleRate, Channels: ch}
}

// WAV returns the audio wrapped in a WAV container.
func (r *AudioResult) WAV() ([]byte, error) {
	c := r.Chunk()
	return audioio.EncodeWAV(c.Samples, c.SampleRate, c.Channels)
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000" // 16kHz mono PCM16
	EncodingPCM22 Encoding = "pcm_22050" // 22.05kHz mono PCM16 (espeak)
	EncodingPCM24 Encoding = "pcm_24000" // 24kHz mono PCM16 (OpenAI, Google)
	EncodingPCM44 Encoding = "pcm_44100" // 44.1kHz mono PCM16
)

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM44:
		return 44100
	default:
		return 24000
	}
}

// EncodingForRate returns the PCM encoding for a sample rate.
func EncodingForRate(rate int) Encoding {
	switch rate {
	case 16000:
		return EncodingPCM16
	case 22050:
		return EncodingPCM22
	case 44100:
		return EncodingPCM44
	default:
		return EncodingPCM24
	}
}

// newResult builds an AudioResult for mono PCM16 audio.
func newResult(provider, text string, pcm []byte, rate int, start time.Time) *AudioResult {
	samples := len(pcm) / 2
	return &AudioResult{
		Audio: pcm,
		Format: AudioFormat{
			Encoding:   EncodingForRate(rate),
			SampleRate: rate,
			Channels:   1,
			BitDepth:   16,
		},
		Duration:  time.Duration(samples) * time.Second / time.Duration(rate),
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
		Provider:  provider,
	}
}
