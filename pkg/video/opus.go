//go:build opus

package video

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// NewOpusDecoder creates a libopus decoder.
func NewOpusDecoder(sampleRate, channels int) (OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("video: opus decoder: %w", err)
	}
	return dec, nil
}
