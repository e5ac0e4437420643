package tts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/suradas/internal/retry"
)

// Config holds TTS provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Provider credentials
	APIKey  string
	BaseURL string

	// Voice is a provider voice name (espeak "en-us", OpenAI "shimmer",
	// Google "en-US-Neural2-F").
	Voice    string
	Model    string
	Language string

	// Rate is the espeak speaking rate in words per minute.
	Rate int

	// Command is the local engine binary; empty searches PATH for
	// espeak-ng then espeak.
	Command string

	// SampleRate requested from providers that let us choose.
	SampleRate int

	Timeout    time.Duration
	Retry      retry.Config
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithVoice sets the voice.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the BCP-47 language code.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithRate sets the speaking rate in words per minute.
func WithRate(wpm int) Option {
	return func(c *Config) { c.Rate = wpm }
}

// WithCommand sets the local engine binary.
func WithCommand(path string) Option {
	return func(c *Config) { c.Command = path }
}

// WithSampleRate sets the requested output sample rate.
func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(c *Config) {
		c.Retry.MaxAttempts = maxAttempts
		c.Retry.InitialDelay = delay
	}
}

// WithHTTPClient sets the HTTP client used by remote providers.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Language:   "en-US",
		Rate:       175,
		SampleRate: 24000,
		Timeout:    30 * time.Second,
		Retry:      retry.DefaultConfig(),
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that an API key is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

func (c *Config) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}
