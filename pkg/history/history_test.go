package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	entry := func(session, cmd string, offset time.Duration) Entry {
		e := NewEntry(session, cmd, "object", SourceText)
		e.At = base.Add(offset)
		return e
	}

	t.Run("unknown session is empty", func(t *testing.T) {
		got, err := s.List(ctx, "nobody", 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("append preserves order", func(t *testing.T) {
		for i, cmd := range []string{"Detect object", "Where am I", "Translate to Hindi"} {
			require.NoError(t, s.Append(ctx, entry("alpha", cmd, time.Duration(i)*time.Second)))
		}

		got, err := s.List(ctx, "alpha", 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "Detect object", got[0].Command)
		assert.Equal(t, "Translate to Hindi", got[2].Command)
		assert.Equal(t, "alpha", got[1].Session)
		assert.NotEmpty(t, got[0].ID)
	})

	t.Run("limit returns the latest entries", func(t *testing.T) {
		got, err := s.List(ctx, "alpha", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Where am I", got[0].Command)
		assert.Equal(t, "Translate to Hindi", got[1].Command)
	})

	t.Run("sessions are isolated and ordered by activity", func(t *testing.T) {
		require.NoError(t, s.Append(ctx, entry("beta", "detect currency", time.Minute)))

		got, err := s.List(ctx, "beta", 0)
		require.NoError(t, err)
		require.Len(t, got, 1)

		ids, err := s.Sessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"beta", "alpha"}, ids)
	})

	t.Run("rejects invalid entries", func(t *testing.T) {
		assert.ErrorIs(t, s.Append(ctx, entry("alpha", "   ", 0)), ErrEmptyCommand)
		assert.ErrorIs(t, s.Append(ctx, entry("", "hello", 0)), ErrNoSession)
	})

	t.Run("closed store fails", func(t *testing.T) {
		require.NoError(t, s.Close())
		assert.ErrorIs(t, s.Append(ctx, entry("alpha", "x", 0)), ErrClosed)
		_, err := s.List(ctx, "alpha", 0)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	s, err := NewFile(t.TempDir())
	require.NoError(t, err)
	runStoreContract(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	runStoreContract(t, NewRedisFromClient(client))
}

func TestMemoryStoreBounded(t *testing.T) {
	s := NewMemory()
	s.maxEntries = 3
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, NewEntry("s", fmt.Sprintf("cmd %d", i), "", SourceText)))
	}
	got, err := s.List(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cmd 2", got[0].Command)
}

func TestRedisStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := NewRedisFromClient(client, WithPrefix("test:"), WithTTL(time.Hour))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, NewEntry("s1", "where am i", "location", SourceVoice)))
	assert.True(t, mr.Exists("test:session:s1"))
	assert.Equal(t, time.Hour, mr.TTL("test:session:s1"))

	mr.FastForward(2 * time.Hour)
	got, err := s.List(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStoreDropsStaleIndexMembers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := NewRedisFromClient(client, WithTTL(time.Hour))
	defer s.Close()
	ctx := context.Background()

	old := NewEntry("old", "detect object", "object", SourceText)
	old.At = time.Now().Add(-3 * time.Hour)
	require.NoError(t, s.Append(ctx, old))
	require.NoError(t, s.Append(ctx, NewEntry("fresh", "detect object", "object", SourceText)))

	ids, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
}

// Session ids come from clients, so they must not reach other keys.
func TestRedisStoreSessionNamesDoNotCollide(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := NewRedisFromClient(client)
	defer s.Close()
	ctx := context.Background()

	names := []string{"index", "sessions", "session:alice", "alice"}
	for i, name := range names {
		e := NewEntry(name, fmt.Sprintf("search %s", name), "search", SourceText)
		e.At = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Append(ctx, e), name)
	}

	for _, name := range names {
		got, err := s.List(ctx, name, 0)
		require.NoError(t, err, name)
		require.Len(t, got, 1, name)
		assert.Equal(t, "search "+name, got[0].Command)
	}

	ids, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "session:alice", "sessions", "index"}, ids)
}

func TestFileStoreSessionNamesDoNotCollide(t *testing.T) {
	s, err := NewFile(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	names := []string{"a.b", "a_b", "a/b", "../a", "A_B"}
	for i, name := range names {
		e := NewEntry(name, "detect object", "object", SourceText)
		e.At = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Append(ctx, e), name)
	}

	for _, name := range names {
		got, err := s.List(ctx, name, 0)
		require.NoError(t, err, name)
		require.Len(t, got, 1, name)
		assert.Equal(t, name, got[0].Session)
	}

	ids, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A_B", "../a", "a/b", "a_b", "a.b"}, ids)
}

func TestNewEntryTrims(t *testing.T) {
	e := NewEntry("s", "  Detect object \n", "object", SourceVoice)
	assert.Equal(t, "Detect object", e.Command)
	assert.Equal(t, SourceVoice, e.Source)
	assert.False(t, e.At.IsZero())
}
