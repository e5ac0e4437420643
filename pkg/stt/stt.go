// Package stt turns a captured phrase into text.
//
// Two recognizers are provided: the Google web speech endpoint (FLAC upload)
// and Google Cloud Speech-to-Text v1. Both take 16 kHz mono PCM16.
package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/suradas/internal/retry"
)

// SampleRate is the rate recognizers expect.
const SampleRate = 16000

var (
	// ErrNoSpeech is returned when the recognizer heard nothing intelligible.
	ErrNoSpeech = errors.New("stt: speech not recognized")

	// ErrNoAPIKey is returned when a recognizer needs a key and has none.
	ErrNoAPIKey = errors.New("stt: API key not configured")

	// ErrEmptyAudio is returned for zero-length input.
	ErrEmptyAudio = errors.New("stt: empty audio")
)

// Transcript is a recognition result.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Backend    string  `json:"backend"`
}

// Recognizer converts 16 kHz mono PCM16 to text.
type Recognizer interface {
	Recognize(ctx context.Context, samples []int16) (*Transcript, error)
	Name() string
}

// APIError is a non-2xx response from a recognition service.
type APIError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stt: %s error (%d): %s", e.Backend, e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	return retry.IsRetryableHTTPStatus(e.StatusCode)
}

// IsUnauthorized reports whether the credentials were rejected.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return !errors.Is(err, ErrNoSpeech)
}
