//go:build !gocv

package camera

import (
	"context"
	"fmt"
	"log/slog"
)

// WebcamAvailable reports whether this build can open local cameras.
const WebcamAvailable = false

// Webcam is unavailable without the gocv build tag.
type Webcam struct{}

// NewWebcam always fails in builds without OpenCV.
func NewWebcam(cfg Config, grabber *Grabber, logger *slog.Logger) (*Webcam, error) {
	return nil, fmt.Errorf("%w: webcam requires -tags gocv", ErrUnsupported)
}

func (w *Webcam) Run(ctx context.Context) error { return ErrUnsupported }
func (w *Webcam) Close() error                  { return nil }
