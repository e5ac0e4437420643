// Package history keeps the per-session, append-only list of commands a
// user has issued.
package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyCommand is returned when appending a blank command.
	ErrEmptyCommand = errors.New("history: empty command")

	// ErrNoSession is returned when an entry has no session id.
	ErrNoSession = errors.New("history: session required")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("history: store closed")
)

// Source identifies how a command was entered.
type Source string

const (
	SourceText  Source = "text"
	SourceVoice Source = "voice"
	SourceTUI   Source = "tui"
	SourceMCP   Source = "mcp"
	SourceCLI   Source = "cli"
)

// Entry is one command in a session's history.
type Entry struct {
	ID      string    `json:"id"`
	Session string    `json:"session"`
	Command string    `json:"command"`
	Kind    string    `json:"kind,omitempty"`
	Source  Source    `json:"source,omitempty"`
	At      time.Time `json:"at"`
}

// NewEntry builds an entry with a fresh id and timestamp.
func NewEntry(session, command, kind string, source Source) Entry {
	return Entry{
		ID:      uuid.NewString(),
		Session: session,
		Command: strings.TrimSpace(command),
		Kind:    kind,
		Source:  source,
		At:      time.Now().UTC(),
	}
}

func (e Entry) validate() error {
	if e.Session == "" {
		return ErrNoSession
	}
	if strings.TrimSpace(e.Command) == "" {
		return ErrEmptyCommand
	}
	return nil
}

// Store persists command history. Entries are returned oldest first.
type Store interface {
	// Append adds an entry to the end of its session's history.
	Append(ctx context.Context, e Entry) error

	// List returns the last limit entries of a session (all if limit <= 0),
	// oldest first. Unknown sessions yield an empty slice.
	List(ctx context.Context, session string, limit int) ([]Entry, error)

	// Sessions returns known session ids, most recently active first.
	Sessions(ctx context.Context) ([]string, error)

	Close() error
}

func tail(entries []Entry, limit int) []Entry {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
