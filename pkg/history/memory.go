package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. Each session keeps at most MaxEntries.
type Memory struct {
	mu         sync.RWMutex
	sessions   map[string][]Entry
	lastSeen   map[string]time.Time
	maxEntries int
	closed     bool
}

// DefaultMaxEntries bounds a session's history in memory.
const DefaultMaxEntries = 500

// NewMemory creates an in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:   make(map[string][]Entry),
		lastSeen:   make(map[string]time.Time),
		maxEntries: DefaultMaxEntries,
	}
}

// Append implements Store.
func (m *Memory) Append(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	entries := append(m.sessions[e.Session], e)
	if len(entries) > m.maxEntries {
		entries = entries[len(entries)-m.maxEntries:]
	}
	m.sessions[e.Session] = entries
	m.lastSeen[e.Session] = e.At
	return nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context, session string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return tail(m.sessions[session], limit), nil
}

// Sessions implements Store.
func (m *Memory) Sessions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	ids := make([]string, 0, len(m.lastSeen))
	for id := range m.lastSeen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.lastSeen[ids[i]].After(m.lastSeen[ids[j]])
	})
	return ids, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*Memory)(nil)
