// Package translate renders text in a target language, either by prompting
// a generative model or through Google Cloud Translation.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyText is returned when there is nothing to translate.
	ErrEmptyText = errors.New("translate: empty text")

	// ErrNoLanguage is returned when no target language was given.
	ErrNoLanguage = errors.New("translate: target language required")

	// ErrUnknownLanguage is returned when a language name cannot be resolved.
	ErrUnknownLanguage = errors.New("translate: unknown language")
)

// Result is a completed translation.
type Result struct {
	Text string
	// Source is the detected source language code, when the backend reports it.
	Source string
	// Target is the language as requested by the user.
	Target  string
	Backend string
}

// Translator translates text into a target language. The target may be a
// language name ("Hindi") or a BCP-47 code ("hi").
type Translator interface {
	Translate(ctx context.Context, text, target string) (*Result, error)
}

func validate(text, target string) (string, string, error) {
	text = strings.TrimSpace(text)
	target = strings.TrimSpace(target)
	if text == "" {
		return "", "", ErrEmptyText
	}
	if target == "" {
		return "", "", ErrNoLanguage
	}
	return text, target, nil
}

// BackendError wraps a failure from a specific backend.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("translate [%s]: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
