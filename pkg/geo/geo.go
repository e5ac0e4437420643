// Package geo resolves the caller's approximate location from its public IP.
package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/teslashibe/suradas/internal/httpc"
	"github.com/teslashibe/suradas/internal/retry"
)

// DefaultURL is the ipapi.co JSON endpoint for the caller's own address.
const DefaultURL = "https://ipapi.co/json"

var (
	// ErrEmptyResponse is returned when the lookup service returns no body.
	ErrEmptyResponse = errors.New("geo: empty response")

	// ErrInvalidResponse is returned when the body is not a JSON object,
	// for example a captive portal page.
	ErrInvalidResponse = errors.New("geo: invalid response")
)

// Location is the subset of the ipapi.co payload used by the assistant.
type Location struct {
	IP          string  `json:"ip"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
}

// Describe formats the location as the info line given to the model.
func (l *Location) Describe() string {
	return fmt.Sprintf("IP: %s, City: %s, Region: %s, Country: %s", l.IP, l.City, l.Region, l.CountryName)
}

// APIError is a failure reported by the lookup service.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("geo: lookup failed (%d): %s", e.StatusCode, e.Reason)
	}
	return "geo: lookup failed: " + e.Reason
}

// IsRetryable reports whether the lookup may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	return retry.IsRetryableHTTPStatus(e.StatusCode)
}

// Locator resolves the current location.
type Locator interface {
	Lookup(ctx context.Context) (*Location, error)
}

// Client queries an ipapi.co compatible endpoint.
type Client struct {
	url    string
	http   *http.Client
	retry  retry.Config
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithURL overrides the lookup endpoint.
func WithURL(url string) Option {
	return func(c *Client) { c.url = url }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the retry policy.
func WithRetry(rc retry.Config) Option {
	return func(c *Client) { c.retry = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a lookup client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		url:    DefaultURL,
		http:   httpc.NewClient(10 * time.Second),
		retry:  retry.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "geo")
	c.retry.ShouldRetry = func(err error) bool {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.IsRetryable()
		}
		return !errors.Is(err, ErrEmptyResponse) && !errors.Is(err, ErrInvalidResponse)
	}
	return c
}

// Lookup fetches the location of the caller's public IP.
func (c *Client) Lookup(ctx context.Context) (*Location, error) {
	var loc *Location
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		l, err := c.fetch(ctx)
		if err != nil {
			c.logger.Warn("lookup failed", "error", err)
			return err
		}
		loc = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("lookup complete", "city", loc.City, "country", loc.CountryName)
	return loc, nil
}

func (c *Client) fetch(ctx context.Context) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("geo: read body: %w", err)
	}

	return parse(resp.StatusCode, body)
}

// parse decodes an ipapi.co body. The service reports some failures with
// HTTP 200 and {"error": true, "reason": ...}.
func parse(status int, body []byte) (*Location, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		if status != http.StatusOK {
			return nil, &APIError{StatusCode: status, Reason: http.StatusText(status)}
		}
		return nil, ErrEmptyResponse
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		if status != http.StatusOK {
			return nil, &APIError{StatusCode: status, Reason: http.StatusText(status)}
		}
		return nil, ErrInvalidResponse
	}

	res := gjson.ParseBytes(body)
	if res.Get("error").Bool() || status != http.StatusOK {
		reason := res.Get("reason").String()
		if msg := res.Get("message").String(); msg != "" {
			reason = strings.TrimSpace(reason + " " + msg)
		}
		if reason == "" {
			reason = http.StatusText(status)
		}
		code := status
		if reason == "RateLimited" && code == http.StatusOK {
			code = http.StatusTooManyRequests
		}
		return nil, &APIError{StatusCode: code, Reason: reason}
	}

	return &Location{
		IP:          res.Get("ip").String(),
		City:        res.Get("city").String(),
		Region:      res.Get("region").String(),
		CountryName: res.Get("country_name").String(),
		CountryCode: res.Get("country_code").String(),
		Latitude:    res.Get("latitude").Float(),
		Longitude:   res.Get("longitude").Float(),
		Timezone:    res.Get("timezone").String(),
	}, nil
}

var _ Locator = (*Client)(nil)
