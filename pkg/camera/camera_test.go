package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrabber_PutAndLatest(t *testing.T) {
	g := NewGrabber("test")

	_, err := g.Latest()
	assert.ErrorIs(t, err, ErrNoFrame)

	src := []byte{0xff, 0xd8, 1, 2, 3}
	g.Put(src)
	src[2] = 9

	got, err := g.Latest()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 1, 2, 3}, got, "grabber must keep its own copy")

	g.Put(nil)
	n, at := g.Stats()
	assert.Equal(t, uint64(1), n)
	assert.False(t, at.IsZero())
}

func TestGrabber_WaitUnblocksOnPut(t *testing.T) {
	g := NewGrabber("test")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Put([]byte("frame"))
	}()

	got, err := g.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "frame", string(got))
}

func TestGrabber_FrameTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaitTimeout = 30 * time.Millisecond
	g := NewGrabber("test", WithConfig(cfg))

	start := time.Now()
	_, err := g.Frame(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGrabber_Stale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = 10 * time.Millisecond
	cfg.WaitTimeout = 0
	g := NewGrabber("test", WithConfig(cfg))

	g.Put([]byte("old"))
	time.Sleep(30 * time.Millisecond)

	_, err := g.Frame(context.Background())
	assert.ErrorIs(t, err, ErrStale)

	g.Put([]byte("new"))
	got, err := g.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestGrabber_Subscribe(t *testing.T) {
	g := NewGrabber("test")
	var calls atomic.Int32
	cancel := g.Subscribe(func(b []byte) { calls.Add(1) })

	g.Put([]byte("a"))
	g.Put([]byte("b"))
	cancel()
	g.Put([]byte("c"))

	assert.Equal(t, int32(2), calls.Load())
}

func TestGrabber_CloseWakesWaiters(t *testing.T) {
	g := NewGrabber("test")
	done := make(chan error, 1)
	go func() {
		_, err := g.Wait(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, g.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Close")
	}

	g.Put([]byte("late"))
	_, err := g.Latest()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileSource_PNGBecomesJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 8), 100, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), "scene.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	src, err := NewFileSource(path, 80)
	require.NoError(t, err)
	assert.Equal(t, "file", src.Name())

	frame, err := src.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, frame[:2])

	again, err := ToJPEG(frame, 80)
	require.NoError(t, err)
	assert.Equal(t, frame, again, "jpeg input passes through")
}

func TestFileSource_Missing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.jpg"), 80)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Validate())

	cfg.Width = 10
	cfg.Quality = 0
	assert.Len(t, cfg.Validate(), 2)
}

func TestPresets(t *testing.T) {
	for name, cfg := range Presets() {
		assert.Empty(t, cfg.Validate(), name)
	}
	low, err := GetPreset(PresetLow)
	require.NoError(t, err)
	assert.Equal(t, 640, low.Width)

	_, err = GetPreset("8k")
	assert.Error(t, err)
}

func TestNone(t *testing.T) {
	_, err := None{}.Frame(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
}
