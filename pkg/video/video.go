// Package video receives WebRTC video and audio, from a browser or from a
// GStreamer webrtcsink network camera, and turns it into JPEG frames for a
// camera.Grabber and PCM for an audioio.StreamSource.
package video

import (
	"errors"
	"time"
)

var (
	ErrNoProducer       = errors.New("video: producer not found")
	ErrTrackTimeout     = errors.New("video: timeout waiting for video track")
	ErrThrottled        = errors.New("video: decode skipped, too soon")
	ErrGrayFrame        = errors.New("video: decoded frame is blank")
	ErrDecoderMissing   = errors.New("video: ffmpeg not found")
	ErrOpusUnsupported  = errors.New("video: built without opus (use -tags opus)")
	ErrClosed           = errors.New("video: closed")
	ErrUnexpectedSignal = errors.New("video: unexpected signalling message")
)

// Config configures both ingest paths.
type Config struct {
	// ICEServers are STUN/TURN URLs. Empty means host candidates only,
	// which is enough on a LAN.
	ICEServers []string

	// KeyframeInterval is how often a PLI asks the sender for a fresh
	// keyframe. Frames are decoded from keyframes only.
	KeyframeInterval time.Duration

	// GatherTimeout bounds ICE gathering when answering an offer.
	GatherTimeout time.Duration

	Decoder    DecoderConfig
	Signalling SignallingConfig
}

// DefaultConfig returns defaults suited to a LAN camera.
func DefaultConfig() Config {
	return Config{
		KeyframeInterval: 2 * time.Second,
		GatherTimeout:    5 * time.Second,
		Decoder:          DefaultDecoderConfig(),
		Signalling:       DefaultSignallingConfig(),
	}
}
