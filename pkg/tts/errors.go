package tts

import (
	"errors"
	"fmt"

	"github.com/teslashibe/suradas/internal/retry"
)

var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrEmptyText is returned when there is nothing to say.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrEngineNotFound is returned when no local speech engine is installed.
	ErrEngineNotFound = errors.New("tts: espeak not found in PATH")

	// ErrProviderUnavailable is returned when no providers are configured.
	ErrProviderUnavailable = errors.New("tts: no providers available")

	// ErrEmptyAudio is returned when a provider produced no audio.
	ErrEmptyAudio = errors.New("tts: provider returned no audio")
)

// APIError represents an error response from a TTS API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true for HTTP 429.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == 429 }

// IsUnauthorized returns true for HTTP 401 and 403.
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == 401 || e.StatusCode == 403 }

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool { return retry.IsRetryableHTTPStatus(e.StatusCode) }

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// isRetryable retries API errors that say so and transport failures.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return !errors.Is(err, ErrEmptyAudio)
}
