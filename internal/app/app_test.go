package app

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/suradas/internal/config"
	"github.com/teslashibe/suradas/internal/log"
	"github.com/teslashibe/suradas/pkg/history"
)

func baseConfig() *config.Config {
	cfg := config.Default()
	cfg.Gemini.APIKey = ""
	cfg.Anthropic.APIKey = ""
	cfg.Camera.Source = "none"
	cfg.Audio.Backend = "mock"
	cfg.TTS.Providers = []string{"none"}
	return cfg
}

func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestNew_WithoutKeys(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), Options{}, log.Nop())
	require.NoError(t, err)
	defer a.Shutdown()

	st := a.Assistant.Status(context.Background())
	assert.False(t, st.Model)
	assert.False(t, st.Healthy)
	assert.True(t, st.Location)
	assert.Equal(t, "none", st.Camera)
	assert.Nil(t, a.Metrics)
}

func TestNew_ImageOverride(t *testing.T) {
	cfg := baseConfig()
	a, err := New(context.Background(), cfg, Options{ImagePath: writePNG(t), Metrics: true}, log.Nop())
	require.NoError(t, err)
	defer a.Shutdown()

	assert.Equal(t, "file", cfg.Camera.Source)
	assert.Equal(t, "file", a.Assistant.Status(context.Background()).Camera)
	assert.NotNil(t, a.Metrics)
	assert.Nil(t, a.Grabber)
}

func TestNew_MissingImage(t *testing.T) {
	_, err := New(context.Background(), baseConfig(), Options{ImagePath: "/nonexistent/frame.png"}, log.Nop())
	assert.Error(t, err)
}

func TestNew_WebRTCMedia(t *testing.T) {
	cfg := baseConfig()
	cfg.Camera.Source = "webrtc"
	a, err := New(context.Background(), cfg, Options{Media: true}, log.Nop())
	require.NoError(t, err)
	defer a.Shutdown()

	require.NotNil(t, a.Grabber)
	require.NotNil(t, a.Ingest)
	require.NotNil(t, a.RemoteMic)
	assert.Equal(t, "webrtc", a.Assistant.Status(context.Background()).Camera)
	// No speech key: the listener is not wired.
	assert.Nil(t, a.Listener)
}

func TestNew_ListenerWithKey(t *testing.T) {
	cfg := baseConfig()
	cfg.Speech.APIKey = "test-key"
	a, err := New(context.Background(), cfg, Options{Media: true}, log.Nop())
	require.NoError(t, err)
	defer a.Shutdown()

	assert.True(t, a.Listener.Available())
	assert.True(t, a.Assistant.Status(context.Background()).Microphone)
}

func TestNew_HistoryBackends(t *testing.T) {
	ctx := context.Background()

	cfg := baseConfig()
	cfg.History.Backend = "file"
	cfg.History.Dir = t.TempDir()
	a, err := New(ctx, cfg, Options{}, log.Nop())
	require.NoError(t, err)
	a.Assistant.Submit(ctx, "s1", "detect object", history.SourceCLI)
	entries, err := a.Assistant.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	a.Shutdown()

	mr := miniredis.RunT(t)
	cfg = baseConfig()
	cfg.History.Backend = "redis"
	cfg.History.RedisURL = "redis://" + mr.Addr()
	a, err = New(ctx, cfg, Options{}, log.Nop())
	require.NoError(t, err)
	defer a.Shutdown()
	a.Assistant.Submit(ctx, "s2", "where am i", history.SourceCLI)
	sessions, err := a.History.Sessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "s2")
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := baseConfig()
	cfg.History.Backend = "redis"
	cfg.History.RedisURL = "redis://127.0.0.1:1"
	_, err := New(context.Background(), cfg, Options{}, log.Nop())
	assert.Error(t, err)
}

func TestNew_ModelChain(t *testing.T) {
	cfg := baseConfig()
	cfg.Gemini.APIKey = "g-key"
	cfg.Anthropic.APIKey = "a-key"
	a, err := New(context.Background(), cfg, Options{}, log.Nop())
	require.NoError(t, err)
	defer a.Shutdown()
	st := a.Assistant.Status(context.Background())
	assert.True(t, st.Model)
	assert.True(t, st.Translate)
}
