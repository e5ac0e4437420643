package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/suradas/internal/retry"
	"github.com/teslashibe/suradas/pkg/audioio"
)

const (
	providerGoogle = "google"
	cloudScope     = "https://www.googleapis.com/auth/cloud-platform"
)

// Google synthesizes through Cloud Text-to-Speech v1 as LINEAR16.
type Google struct {
	config *Config
	svc    *texttospeech.Service
	logger *slog.Logger
}

// NewGoogle creates a Cloud Text-to-Speech client. Without an API key it
// uses application-default credentials. WithBaseURL overrides the endpoint.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	cfg.Retry.ShouldRetry = isRetryable

	var clientOpts []option.ClientOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	} else {
		ts, err := google.DefaultTokenSource(ctx, cloudScope)
		if err != nil {
			return nil, WrapError(providerGoogle, fmt.Errorf("credentials: %w", err))
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil && cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.HTTPClient))
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	return &Google{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Name returns "google".
func (g *Google) Name() string { return providerGoogle }

// Synthesize implements Provider.
func (g *Google) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.config.Language,
			Name:         g.config.Voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(g.config.SampleRate),
		},
	}

	var resp *texttospeech.SynthesizeSpeechResponse
	err := retry.Do(ctx, g.config.Retry, func(ctx context.Context) error {
		var err error
		resp, err = g.svc.Text.Synthesize(req).Context(ctx).Do()
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) {
				return &APIError{StatusCode: gerr.Code, Message: gerr.Message, Provider: providerGoogle}
			}
			return WrapError(providerGoogle, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}

	// LINEAR16 responses carry a WAV header.
	samples, rate, _, err := audioio.DecodeWAV(raw)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}
	if len(samples) == 0 {
		return nil, WrapError(providerGoogle, ErrEmptyAudio)
	}

	result := newResult(providerGoogle, text, audioio.SamplesToBytes(samples), rate, start)
	g.logger.Debug("synthesized audio", "chars", len(text), "latency_ms", result.LatencyMs)
	return result, nil
}

// Health lists voices for the configured language.
func (g *Google) Health(ctx context.Context) error {
	if _, err := g.svc.Voices.List().LanguageCode(g.config.Language).Context(ctx).Do(); err != nil {
		return WrapError(providerGoogle, err)
	}
	return nil
}

// Close is a no-op.
func (g *Google) Close() error { return nil }

var _ Provider = (*Google)(nil)
