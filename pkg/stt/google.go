package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/teslashibe/suradas/internal/httpc"
	"github.com/teslashibe/suradas/internal/retry"
	"github.com/teslashibe/suradas/pkg/debug"
)

// DefaultWebSpeechURL is the Google web speech v2 endpoint.
const DefaultWebSpeechURL = "http://www.google.com/speech-api/v2/recognize"

// defaultConfidence is assigned to hypotheses returned without a score.
const defaultConfidence = 0.5

// WebSpeech recognizes through the Google web speech endpoint.
type WebSpeech struct {
	url      string
	apiKey   string
	language string
	client   *http.Client
	retry    retry.Config
	logger   *slog.Logger
}

// Option configures a recognizer.
type Option func(*options)

type options struct {
	url      string
	apiKey   string
	language string
	client   *http.Client
	retry    retry.Config
	logger   *slog.Logger
}

// WithURL overrides the service endpoint.
func WithURL(u string) Option { return func(o *options) { o.url = u } }

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option { return func(o *options) { o.apiKey = key } }

// WithLanguage sets the recognition language (default "en-US").
func WithLanguage(lang string) Option { return func(o *options) { o.language = lang } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.client = c } }

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg retry.Config) Option { return func(o *options) { o.retry = cfg } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func buildOptions(opts []Option) options {
	o := options{
		language: "en-US",
		client:   httpc.Client,
		retry:    retry.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.retry.ShouldRetry = isRetryable
	return o
}

// NewWebSpeech creates a web speech recognizer. An API key is required.
func NewWebSpeech(opts ...Option) (*WebSpeech, error) {
	o := buildOptions(opts)
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if o.url == "" {
		o.url = DefaultWebSpeechURL
	}
	return &WebSpeech{
		url:      o.url,
		apiKey:   o.apiKey,
		language: o.language,
		client:   o.client,
		retry:    o.retry,
		logger:   o.logger.With("component", "stt.webspeech"),
	}, nil
}

// Name returns "google".
func (w *WebSpeech) Name() string { return "google" }

// Recognize implements Recognizer.
func (w *WebSpeech) Recognize(ctx context.Context, samples []int16) (*Transcript, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	body, err := EncodeFLAC(samples, SampleRate)
	if err != nil {
		return nil, err
	}
	debug.Log("🎙️  web speech: %d samples -> %d bytes FLAC\n", len(samples), len(body))

	q := url.Values{}
	q.Set("client", "chromium")
	q.Set("lang", w.language)
	q.Set("key", w.apiKey)
	q.Set("pFilter", "0")
	endpoint := w.url + "?" + q.Encode()

	var result *Transcript
	err = retry.Do(ctx, w.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", fmt.Sprintf("audio/x-flac; rate=%d", SampleRate))

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("stt: request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("stt: reading response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &APIError{Backend: w.Name(), StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}

		result, err = parseWebSpeech(data)
		return err
	})
	if err != nil {
		return nil, err
	}

	result.Language = w.language
	result.Backend = w.Name()
	w.logger.Debug("recognized", "text", result.Text, "confidence", result.Confidence)
	return result, nil
}

// parseWebSpeech picks the best hypothesis from the newline-delimited JSON
// body. The service usually sends an empty {"result":[]} line first.
func parseWebSpeech(body []byte) (*Transcript, error) {
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		alts := gjson.Get(line, "result.0.alternative")
		if !alts.Exists() || len(alts.Array()) == 0 {
			continue
		}

		var best *Transcript
		for _, alt := range alts.Array() {
			text := strings.TrimSpace(alt.Get("transcript").String())
			if text == "" {
				continue
			}
			conf := defaultConfidence
			if c := alt.Get("confidence"); c.Exists() {
				conf = c.Float()
			}
			if best == nil || conf > best.Confidence {
				best = &Transcript{Text: text, Confidence: conf}
			}
		}
		if best != nil {
			return best, nil
		}
	}
	return nil, ErrNoSpeech
}

var _ Recognizer = (*WebSpeech)(nil)
