package translate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gtranslate "google.golang.org/api/translate/v2"

	"github.com/teslashibe/suradas/internal/retry"
)

const (
	backendGoogle = "google"
	cloudScope    = "https://www.googleapis.com/auth/cloud-platform"
)

// Google translates through the Cloud Translation v2 API.
type Google struct {
	svc    *gtranslate.Service
	retry  retry.Config
	logger *slog.Logger
}

// GoogleOption configures the Google backend.
type GoogleOption func(*googleConfig)

type googleConfig struct {
	apiKey   string
	endpoint string
	retry    retry.Config
	logger   *slog.Logger
}

// WithAPIKey authenticates with an API key instead of application-default
// credentials.
func WithAPIKey(key string) GoogleOption {
	return func(c *googleConfig) { c.apiKey = key }
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(url string) GoogleOption {
	return func(c *googleConfig) { c.endpoint = url }
}

// WithRetry sets the retry policy for transient API failures.
func WithRetry(cfg retry.Config) GoogleOption {
	return func(c *googleConfig) { c.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GoogleOption {
	return func(c *googleConfig) { c.logger = l }
}

// NewGoogle creates a Cloud Translation client. Without an API key it uses
// application-default credentials.
func NewGoogle(ctx context.Context, opts ...GoogleOption) (*Google, error) {
	cfg := googleConfig{retry: retry.DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var clientOpts []option.ClientOption
	if cfg.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.apiKey))
	} else {
		ts, err := google.DefaultTokenSource(ctx, cloudScope)
		if err != nil {
			return nil, &BackendError{Backend: backendGoogle, Err: fmt.Errorf("credentials: %w", err)}
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	if cfg.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.endpoint))
	}

	svc, err := gtranslate.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, &BackendError{Backend: backendGoogle, Err: err}
	}

	return &Google{
		svc:    svc,
		retry:  cfg.retry,
		logger: cfg.logger.With("component", "translate.google"),
	}, nil
}

// Translate implements Translator.
func (g *Google) Translate(ctx context.Context, text, target string) (*Result, error) {
	text, target, err := validate(text, target)
	if err != nil {
		return nil, err
	}

	tag, err := ResolveLanguage(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, target)
	}

	rc := g.retry
	rc.ShouldRetry = isTransient
	var resp *gtranslate.TranslationsListResponse
	err = retry.Do(ctx, rc, func(ctx context.Context) error {
		var err error
		resp, err = g.svc.Translations.List([]string{text}, tag.String()).
			Format("text").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			g.logger.Warn("translation rejected", "status", gerr.Code, "target", tag.String())
		}
		return nil, &BackendError{Backend: backendGoogle, Err: err}
	}
	if len(resp.Translations) == 0 {
		return nil, &BackendError{Backend: backendGoogle, Err: errors.New("no translations returned")}
	}

	tr := resp.Translations[0]
	return &Result{
		Text:    html.UnescapeString(tr.TranslatedText),
		Source:  tr.DetectedSourceLanguage,
		Target:  target,
		Backend: backendGoogle,
	}, nil
}

// isTransient reports whether a Cloud Translation failure is worth retrying.
func isTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retry.IsRetryableHTTPStatus(gerr.Code)
	}
	var ne net.Error
	return errors.As(err, &ne)
}

var _ Translator = (*Google)(nil)
