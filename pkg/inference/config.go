package inference

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/suradas/internal/httpc"
	"github.com/teslashibe/suradas/internal/retry"
)

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // API key

	// Models
	Model       string // Default chat model
	VisionModel string // Vision model (may differ from chat)
	SearchModel string // Model used for grounded search

	// Request defaults
	MaxTokens   int
	Temperature float64

	Timeout time.Duration

	// Retry configuration for transient failures (429, 5xx, network).
	Retry retry.Config

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the default chat model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithVisionModel sets the vision model.
func WithVisionModel(model string) Option {
	return func(c *Config) { c.VisionModel = model }
}

// WithSearchModel sets the model used for grounded search.
func WithSearchModel(model string) Option {
	return func(c *Config) { c.SearchModel = model }
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(c *Config) {
		c.Retry.MaxAttempts = maxAttempts
		c.Retry.InitialDelay = delay
	}
}

// WithHTTPClient sets the HTTP client used by REST providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults for Gemini.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Model:       "gemini-1.5-pro",
		VisionModel: "gemini-1.5-pro",
		SearchModel: "gemini-2.0-flash",
		MaxTokens:   1024,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
		Retry:       retry.DefaultConfig(),
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Model == "" && c.VisionModel == "" {
		return ErrNoModel
	}
	return nil
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return httpc.NewClient(c.Timeout)
}

// retryConfig returns the retry settings with the transient-error predicate.
func (c *Config) retryConfig() retry.Config {
	rc := c.Retry
	rc.ShouldRetry = IsRetryable
	return rc
}
