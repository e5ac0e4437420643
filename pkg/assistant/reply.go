package assistant

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/teslashibe/suradas/pkg/camera"
	"github.com/teslashibe/suradas/pkg/command"
	"github.com/teslashibe/suradas/pkg/detection"
	"github.com/teslashibe/suradas/pkg/geo"
	"github.com/teslashibe/suradas/pkg/history"
	"github.com/teslashibe/suradas/pkg/inference"
	"github.com/teslashibe/suradas/pkg/speech"
	"github.com/teslashibe/suradas/pkg/stt"
	"github.com/teslashibe/suradas/pkg/translate"
	"github.com/teslashibe/suradas/pkg/tts"
)

// Level is the severity a UI should render a reply with.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Reply is the outcome of one assistant operation.
type Reply struct {
	ID      string       `json:"id"`
	Session string       `json:"session,omitempty"`
	Command command.Kind `json:"command,omitempty"`
	Title   string       `json:"title,omitempty"`
	// Notice is secondary text: a capture hint, the location info line,
	// or the recognized phrase.
	Notice string `json:"notice,omitempty"`
	Level  Level  `json:"level"`
	Text   string `json:"text"`

	// NeedsFrame asks the UI to offer a capture button for Command.
	NeedsFrame bool `json:"needs_frame,omitempty"`
	// NeedsText asks the UI for the text to translate into TargetLanguage.
	NeedsText      bool   `json:"needs_text,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`

	Labels  string             `json:"labels,omitempty"`
	Sources []inference.Source `json:"sources,omitempty"`
	Spoken  bool               `json:"spoken,omitempty"`

	ErrorClass ErrorClass `json:"error_class,omitempty"`
	Err        error      `json:"-"`
	At         time.Time  `json:"at"`
}

// Failed reports whether the reply carries an error.
func (r Reply) Failed() bool { return r.Level == LevelError }

// ErrorClass groups failures for logs and metrics.
type ErrorClass string

const (
	ClassRateLimited  ErrorClass = "rate_limited"
	ClassUnauthorized ErrorClass = "unauthorized"
	ClassTimeout      ErrorClass = "timeout"
	ClassUnavailable  ErrorClass = "unavailable"
	ClassInvalidInput ErrorClass = "invalid_input"
	ClassInternal     ErrorClass = "internal"
)

// Classify maps an error from any provider to an ErrorClass. nil maps to "".
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, speech.ErrWaitTimeout) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}

	var ie *inference.APIError
	if errors.As(err, &ie) {
		switch {
		case ie.IsRateLimited():
			return ClassRateLimited
		case ie.IsUnauthorized():
			return ClassUnauthorized
		case ie.IsBadRequest():
			return ClassInvalidInput
		case ie.IsServerError():
			return ClassUnavailable
		}
	}
	var te *tts.APIError
	if errors.As(err, &te) {
		switch {
		case te.IsRateLimited():
			return ClassRateLimited
		case te.IsUnauthorized():
			return ClassUnauthorized
		case te.IsRetryable():
			return ClassUnavailable
		}
	}
	var se *stt.APIError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429:
			return ClassRateLimited
		case se.IsUnauthorized():
			return ClassUnauthorized
		case se.IsRetryable():
			return ClassUnavailable
		}
	}
	var gae *googleapi.Error
	if errors.As(err, &gae) {
		switch {
		case gae.Code == http.StatusTooManyRequests:
			return ClassRateLimited
		case gae.Code == http.StatusUnauthorized, gae.Code == http.StatusForbidden:
			return ClassUnauthorized
		case gae.Code == http.StatusBadRequest:
			return ClassInvalidInput
		case gae.Code >= 500:
			return ClassUnavailable
		}
	}
	var ge *geo.APIError
	if errors.As(err, &ge) {
		if ge.StatusCode == 429 {
			return ClassRateLimited
		}
		return ClassUnavailable
	}

	switch {
	case errors.Is(err, inference.ErrNoAPIKey),
		errors.Is(err, stt.ErrNoAPIKey),
		errors.Is(err, tts.ErrNoAPIKey):
		return ClassUnauthorized

	case errors.Is(err, translate.ErrEmptyText),
		errors.Is(err, translate.ErrNoLanguage),
		errors.Is(err, translate.ErrUnknownLanguage),
		errors.Is(err, inference.ErrNoImage),
		errors.Is(err, history.ErrEmptyCommand),
		errors.Is(err, ErrNotVisionCommand),
		errors.Is(err, ErrEmptyQuery):
		return ClassInvalidInput

	case errors.Is(err, ErrNotConfigured),
		errors.Is(err, camera.ErrNoFrame),
		errors.Is(err, camera.ErrStale),
		errors.Is(err, speech.ErrNoMicrophone),
		errors.Is(err, speech.ErrBusy),
		errors.Is(err, inference.ErrProviderUnavailable),
		errors.Is(err, inference.ErrAllProvidersFailed),
		errors.Is(err, inference.ErrVisionNotSupported),
		errors.Is(err, tts.ErrEngineNotFound),
		errors.Is(err, tts.ErrProviderUnavailable),
		errors.Is(err, detection.ErrUnavailable),
		errors.Is(err, geo.ErrInvalidResponse):
		return ClassUnavailable
	}

	if inference.IsRetryable(err) {
		return ClassUnavailable
	}
	return ClassInternal
}
