package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/teslashibe/suradas/internal/retry"
	"github.com/teslashibe/suradas/pkg/inference"
)

func TestModelTranslate(t *testing.T) {
	mock := inference.NewMock()
	mock.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		return &inference.ChatResponse{Message: inference.NewAssistantMessage("नमस्ते")}, nil
	}

	tr := NewModel(mock)
	res, err := tr.Translate(context.Background(), " hello ", "Hindi")
	require.NoError(t, err)

	assert.Equal(t, "नमस्ते", res.Text)
	assert.Equal(t, "Hindi", res.Target)
	assert.Equal(t, "Translate this to Hindi: hello", mock.LastCall().Prompt)
}

func TestModelTranslateValidation(t *testing.T) {
	tr := NewModel(inference.NewMock())

	_, err := tr.Translate(context.Background(), "  ", "Hindi")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = tr.Translate(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrNoLanguage)
}

func TestModelTranslateProviderError(t *testing.T) {
	apiErr := &inference.APIError{StatusCode: 429, Provider: "gemini"}
	tr := NewModel(inference.WithError(apiErr))

	_, err := tr.Translate(context.Background(), "hello", "French")
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "model", be.Backend)
	assert.ErrorIs(t, err, apiErr)
}

func TestResolveLanguage(t *testing.T) {
	tests := map[string]string{
		"Hindi":   "hi",
		"french":  "fr",
		"Spanish": "es",
		"tamil.":  "ta",
		"German":  "de",
		"ja":      "ja",
		"pt-BR":   "pt-BR",
	}
	for in, want := range tests {
		tag, err := ResolveLanguage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, tag.String(), in)
	}

	_, err := ResolveLanguage("")
	assert.ErrorIs(t, err, ErrNoLanguage)

	_, err = ResolveLanguage("ancient martian")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestGoogleTranslate(t *testing.T) {
	var target, query, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		target = r.Form.Get("target")
		query = r.Form.Get("q")
		key = r.Form.Get("key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"translations": [{"translatedText": "Bonjour &amp; bienvenue", "detectedSourceLanguage": "en"}]}}`))
	}))
	defer srv.Close()

	g, err := NewGoogle(context.Background(), WithAPIKey("test-key"), WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	res, err := g.Translate(context.Background(), "Hello & welcome", "French")
	require.NoError(t, err)

	assert.Equal(t, "fr", target)
	assert.Equal(t, "Hello & welcome", query)
	assert.Equal(t, "test-key", key)
	assert.Equal(t, "Bonjour & bienvenue", res.Text)
	assert.Equal(t, "en", res.Source)
	assert.Equal(t, "French", res.Target)
}

func TestGoogleTranslateUnknownLanguage(t *testing.T) {
	g, err := NewGoogle(context.Background(), WithAPIKey("test-key"), WithEndpoint("http://127.0.0.1:1/"))
	require.NoError(t, err)

	_, err = g.Translate(context.Background(), "hello", "ancient martian")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func statusServer(t *testing.T, hits *atomic.Int32, fail int, codes ...int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		w.Header().Set("Content-Type", "application/json")
		if n <= fail {
			code := codes[(n-1)%len(codes)]
			w.WriteHeader(code)
			fmt.Fprintf(w, `{"error": {"code": %d, "message": "quota"}}`, code)
			return
		}
		w.Write([]byte(`{"data": {"translations": [{"translatedText": "Hola"}]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleTranslateRetriesTransient(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, &hits, 2, http.StatusTooManyRequests, http.StatusServiceUnavailable)

	g, err := NewGoogle(context.Background(), WithAPIKey("k"), WithEndpoint(srv.URL+"/"), WithRetry(fastRetry()))
	require.NoError(t, err)

	res, err := g.Translate(context.Background(), "Hello", "Spanish")
	require.NoError(t, err)
	assert.Equal(t, "Hola", res.Text)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGoogleTranslateRateLimitExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, &hits, 100, http.StatusTooManyRequests)

	g, err := NewGoogle(context.Background(), WithAPIKey("k"), WithEndpoint(srv.URL+"/"), WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = g.Translate(context.Background(), "Hello", "Spanish")
	var gerr *googleapi.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusTooManyRequests, gerr.Code)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGoogleTranslateBadRequestNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, &hits, 100, http.StatusBadRequest)

	g, err := NewGoogle(context.Background(), WithAPIKey("k"), WithEndpoint(srv.URL+"/"), WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = g.Translate(context.Background(), "Hello", "Spanish")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}
