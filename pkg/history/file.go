package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// File stores each session as a JSON array in dir/<sha256(session)>.json.
// Entries carry their session id, so file names never need decoding.
type File struct {
	dir    string
	mu     sync.Mutex
	closed bool
}

// NewFile creates a file-backed store, creating dir if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(session string) string {
	sum := sha256.Sum256([]byte(session))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}

func (f *File) read(session string) ([]Entry, error) {
	return readEntries(f.path(session))
}

func readEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("history: decode %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// Append implements Store. Writes go to a temp file that is renamed into
// place so a crash never leaves a truncated session.
func (f *File) Append(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	entries, err := f.read(e.Session)
	if err != nil {
		return err
	}
	entries = append(entries, e)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".history-*")
	if err != nil {
		return fmt.Errorf("history: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("history: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("history: write: %w", err)
	}
	return os.Rename(tmp.Name(), f.path(e.Session))
}

// List implements Store.
func (f *File) List(ctx context.Context, session string, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	entries, err := f.read(session)
	if err != nil {
		return nil, err
	}
	return tail(entries, limit), nil
}

// Sessions implements Store, ordered by each session's latest entry.
func (f *File) Sessions(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	matches, err := filepath.Glob(filepath.Join(f.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	type item struct {
		id   string
		last time.Time
	}
	items := make([]item, 0, len(matches))
	for _, m := range matches {
		entries, err := readEntries(m)
		if err != nil || len(entries) == 0 {
			continue
		}
		items = append(items, item{id: entries[0].Session, last: entries[len(entries)-1].At})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].last.After(items[j].last)
	})

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

// Close implements Store.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ Store = (*File)(nil)
