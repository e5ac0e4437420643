//go:build !vad

package vad

import "fmt"

func newSilero(cfg Config) (Detector, error) {
	return nil, fmt.Errorf("%w: built without vad tag", ErrModelUnavailable)
}
