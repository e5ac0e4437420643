package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk represents a chunk of interleaved PCM16 audio.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Duration returns the playback duration of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Mono returns the chunk downmixed to one channel.
func (c AudioChunk) Mono() AudioChunk {
	if c.Channels <= 1 {
		return c
	}
	frames := len(c.Samples) / c.Channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for ch := 0; ch < c.Channels; ch++ {
			sum += int32(c.Samples[i*c.Channels+ch])
		}
		out[i] = int16(sum / int32(c.Channels))
	}
	return AudioChunk{Samples: out, SampleRate: c.SampleRate, Channels: 1}
}

// Source captures audio from a microphone or other input.
type Source interface {
	// Start begins audio capture.
	Start(ctx context.Context) error

	// Stop halts audio capture. It is safe to call Stop multiple times.
	Stop() error

	// Read reads the next audio chunk, blocking if necessary.
	// Returns io.EOF when the source is stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "stream", "mock").
	Name() string

	io.Closer
}
