//go:build gocv

package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// WebcamAvailable reports whether this build can open local cameras.
const WebcamAvailable = true

// Webcam captures from a local device through OpenCV and feeds a Grabber.
type Webcam struct {
	cfg     Config
	grabber *Grabber
	logger  *slog.Logger

	mu  sync.Mutex
	cap *gocv.VideoCapture
}

// NewWebcam opens the device named by cfg.Device.
func NewWebcam(cfg Config, grabber *Grabber, logger *slog.Logger) (*Webcam, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("camera: open device %d: %w", cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera: device %d did not open", cfg.Device)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &Webcam{
		cfg:     cfg,
		grabber: grabber,
		logger:  logger.With("component", "camera.webcam"),
		cap:     capture,
	}, nil
}

// Run reads frames until ctx is cancelled.
func (w *Webcam) Run(ctx context.Context) error {
	mat := gocv.NewMat()
	defer mat.Close()

	interval := time.Second / time.Duration(w.cfg.Framerate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		w.mu.Lock()
		if w.cap == nil {
			w.mu.Unlock()
			return ErrClosed
		}
		ok := w.cap.Read(&mat)
		w.mu.Unlock()

		if !ok || mat.Empty() {
			misses++
			if misses%50 == 1 {
				w.logger.Warn("webcam read failed", "device", w.cfg.Device, "misses", misses)
			}
			continue
		}
		misses = 0

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, w.cfg.Quality})
		if err != nil {
			w.logger.Warn("jpeg encode failed", "error", err)
			continue
		}
		w.grabber.Put(buf.GetBytes())
		buf.Close()
	}
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cap == nil {
		return nil
	}
	err := w.cap.Close()
	w.cap = nil
	return err
}
