// Package camera keeps the most recent JPEG frame from whichever producer
// is active: a local webcam, a WebRTC stream, or a still image.
package camera

import (
	"context"
	"errors"
)

var (
	ErrNoFrame     = errors.New("camera: no frame available")
	ErrStale       = errors.New("camera: latest frame is stale")
	ErrClosed      = errors.New("camera: closed")
	ErrUnsupported = errors.New("camera: producer not supported in this build")
)

// Source yields the most recent frame as JPEG bytes.
type Source interface {
	Frame(ctx context.Context) ([]byte, error)
	Name() string
}

// None is a Source that never has a frame.
type None struct{}

func (None) Frame(ctx context.Context) ([]byte, error) { return nil, ErrNoFrame }
func (None) Name() string                              { return "none" }

var _ Source = None{}
