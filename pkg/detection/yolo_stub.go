//go:build !gocv

package detection

import "fmt"

// NewYOLO is unavailable without the gocv build tag.
func NewYOLO(cfg Config) (Detector, error) {
	return nil, fmt.Errorf("%w: object detection requires -tags gocv", ErrUnavailable)
}
