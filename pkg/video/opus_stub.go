//go:build !opus

package video

// NewOpusDecoder fails in builds without libopus.
func NewOpusDecoder(sampleRate, channels int) (OpusDecoder, error) {
	return nil, ErrOpusUnsupported
}
