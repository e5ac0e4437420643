//go:build !gocv

package detection

import (
	"errors"
	"testing"
)

func TestNewYOLO_Unavailable(t *testing.T) {
	if _, err := NewYOLO(DefaultConfig()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
