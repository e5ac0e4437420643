package stt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gspeech "google.golang.org/api/speech/v1"

	"github.com/teslashibe/suradas/internal/retry"
	"github.com/teslashibe/suradas/pkg/audioio"
)

const cloudScope = "https://www.googleapis.com/auth/cloud-platform"

// Cloud recognizes through Google Cloud Speech-to-Text v1.
type Cloud struct {
	svc      *gspeech.Service
	language string
	retry    retry.Config
	logger   *slog.Logger
}

// NewCloud creates a Cloud Speech client. Without an API key it uses
// application-default credentials. WithURL overrides the endpoint.
func NewCloud(ctx context.Context, opts ...Option) (*Cloud, error) {
	o := buildOptions(opts)

	var clientOpts []option.ClientOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(o.apiKey))
	} else {
		ts, err := google.DefaultTokenSource(ctx, cloudScope)
		if err != nil {
			return nil, fmt.Errorf("stt: credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	if o.url != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(o.url))
	}

	svc, err := gspeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("stt: creating cloud speech client: %w", err)
	}
	return &Cloud{
		svc:      svc,
		language: o.language,
		retry:    o.retry,
		logger:   o.logger.With("component", "stt.cloud"),
	}, nil
}

// Name returns "cloud".
func (c *Cloud) Name() string { return "cloud" }

// Recognize implements Recognizer.
func (c *Cloud) Recognize(ctx context.Context, samples []int16) (*Transcript, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	req := &gspeech.RecognizeRequest{
		Config: &gspeech.RecognitionConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            SampleRate,
			LanguageCode:               c.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &gspeech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)),
		},
	}

	var resp *gspeech.RecognizeResponse
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Speech.Recognize(req).Context(ctx).Do()
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) {
				return &APIError{Backend: c.Name(), StatusCode: gerr.Code, Message: gerr.Message}
			}
			return fmt.Errorf("stt: cloud request failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var best *Transcript
	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		parts = append(parts, strings.TrimSpace(alt.Transcript))
		if best == nil || alt.Confidence < best.Confidence {
			best = &Transcript{Confidence: alt.Confidence}
		}
	}
	if best == nil {
		return nil, ErrNoSpeech
	}
	best.Text = strings.Join(parts, " ")
	if strings.TrimSpace(best.Text) == "" {
		return nil, ErrNoSpeech
	}
	best.Language = c.language
	best.Backend = c.Name()
	c.logger.Debug("recognized", "text", best.Text, "confidence", best.Confidence)
	return best, nil
}

var _ Recognizer = (*Cloud)(nil)
