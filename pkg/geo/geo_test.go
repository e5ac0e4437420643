package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/suradas/internal/retry"
)

const samplePayload = `{
  "ip": "49.36.10.1",
  "city": "Pune",
  "region": "Maharashtra",
  "country_name": "India",
  "country_code": "IN",
  "latitude": 18.5196,
  "longitude": 73.8553,
  "timezone": "Asia/Kolkata"
}`

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}
}

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL), WithRetry(fastRetry()))
	loc, err := c.Lookup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Pune", loc.City)
	assert.Equal(t, "IN", loc.CountryCode)
	assert.InDelta(t, 18.5196, loc.Latitude, 1e-6)
	assert.Equal(t, "IP: 49.36.10.1, City: Pune, Region: Maharashtra, Country: India", loc.Describe())
}

func TestLookupErrorBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"ip": "127.0.0.1", "error": true, "reason": "Reserved IP Address", "reserved": true}`))
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL), WithRetry(fastRetry()))
	_, err := c.Lookup(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Reserved IP Address", apiErr.Reason)
	assert.Equal(t, int32(1), calls.Load(), "permanent errors are not retried")
}

func TestLookupRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": true, "reason": "RateLimited", "message": "slow down"}`))
			return
		}
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL), WithRetry(fastRetry()))
	loc, err := c.Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "India", loc.CountryName)
	assert.Equal(t, int32(2), calls.Load())
}

func TestParse(t *testing.T) {
	_, err := parse(http.StatusOK, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = parse(http.StatusBadGateway, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsRetryable())

	_, err = parse(http.StatusOK, []byte(`{"error": true, "reason": "RateLimited"}`))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)

	for _, body := range []string{
		`<html><body>Sign in to the hotel Wi-Fi</body></html>`,
		`"just a string"`,
		`[1, 2, 3]`,
		`{"ip": "1.2.3.4"`,
	} {
		_, err = parse(http.StatusOK, []byte(body))
		assert.ErrorIs(t, err, ErrInvalidResponse, body)
	}

	_, err = parse(http.StatusServiceUnavailable, []byte(`<html>down</html>`))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestLookupCaptivePortal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!doctype html><title>Login</title>`))
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL), WithRetry(fastRetry()))
	loc, err := c.Lookup(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Nil(t, loc)
	assert.Equal(t, int32(1), calls.Load())
}
