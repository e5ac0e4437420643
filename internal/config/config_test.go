package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suradas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8501", cfg.Server.Addr)
	assert.Equal(t, "gemini-1.5-pro", cfg.Gemini.Model)
	assert.Equal(t, cfg.Gemini.Model, cfg.Gemini.VisionModel)
	assert.Equal(t, 5*time.Second, cfg.Speech.ListenTimeout)
	assert.Equal(t, []string{"espeak"}, cfg.TTS.Providers)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, "https://ipapi.co/json", cfg.Geo.URL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadExpandsEnvAndParsesDurations(t *testing.T) {
	t.Setenv("SURADAS_TEST_KEY", "secret-from-env")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	path := writeConfig(t, `
gemini:
  api_key: ${SURADAS_TEST_KEY}
  model: gemini-2.0-flash
speech:
  listen_timeout: 3s
tts:
  providers: [openai, espeak]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.VisionModel)
	assert.Equal(t, 3*time.Second, cfg.Speech.ListenTimeout)
	assert.Equal(t, []string{"openai", "espeak"}, cfg.TTS.Providers)
}

func TestLoadEnvOverridesEmptySecrets(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SURADAS_ADDR", ":9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "google-key", cfg.Gemini.APIKey)
	assert.Equal(t, "google-key", cfg.Translate.APIKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.History.RedisURL)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"unknown translate backend", func(c *Config) { c.Translate.Backend = "deepl" }, "translate.backend"},
		{"unknown recognizer", func(c *Config) { c.Speech.Recognizer = "whisper" }, "speech.recognizer"},
		{"unknown tts provider", func(c *Config) { c.TTS.Providers = []string{"espeak", "polly"} }, "tts.providers"},
		{"unknown camera source", func(c *Config) { c.Camera.Source = "kinect" }, "camera.source"},
		{"signalling without url", func(c *Config) { c.Camera.Source = "signalling" }, "camera.signalling_url"},
		{"file without path", func(c *Config) { c.Camera.Source = "file" }, "camera.image_path"},
		{"redis without url", func(c *Config) { c.History.Backend = "redis"; c.History.RedisURL = "" }, "history.redis_url"},
		{"unknown history backend", func(c *Config) { c.History.Backend = "sqlite" }, "history.backend"},
		{"negative duration", func(c *Config) { c.Speech.MaxPhrase = -time.Second }, "speech"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)

			err := cfg.Validate()
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}
