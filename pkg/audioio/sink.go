package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start begins audio playback.
	Start(ctx context.Context) error

	// Stop halts audio playback. It is safe to call Stop multiple times.
	Stop() error

	// Write sends an audio chunk to the output device. Chunks at a
	// different rate are resampled to the sink's rate.
	Write(ctx context.Context, chunk AudioChunk) error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}
