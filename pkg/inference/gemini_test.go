package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/suradas/internal/httpc"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGemini(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithRetry(3, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return g
}

const geminiOK = `{
  "candidates": [{"content": {"parts": [{"text": "A red apple "}, {"text": "on a table."}]}, "finishReason": "STOP"}],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 6, "totalTokenCount": 18}
}`

func TestGeminiRequiresAPIKey(t *testing.T) {
	_, err := NewGemini()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}
}

func TestGeminiUsesSharedHTTPDefaults(t *testing.T) {
	var agent string
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.Write([]byte(geminiOK))
	})

	if _, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if agent != httpc.UserAgent {
		t.Errorf("User-Agent = %q, want %q", agent, httpc.UserAgent)
	}
}

func TestGeminiVision(t *testing.T) {
	var got geminiRequest
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-pro:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Query().Get("key") != "" {
			t.Errorf("api key must not be sent in the query string")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(geminiOK))
	})

	frame := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	resp, err := g.Vision(context.Background(), &VisionRequest{
		Prompt: "Describe all visible objects.",
		Frames: [][]byte{frame},
	})
	if err != nil {
		t.Fatalf("Vision: %v", err)
	}
	if resp.Content != "A red apple on a table." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}

	parts := got.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "Describe all visible objects." {
		t.Fatalf("unexpected parts %+v", parts)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/jpeg" {
		t.Errorf("expected inline jpeg, got %+v", parts[1].InlineData)
	}
	if parts[1].InlineData.Data != EncodeImageBytesBase64(frame) {
		t.Error("frame was not forwarded verbatim")
	}
}

func TestGeminiVisionWithoutFrame(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := g.Vision(context.Background(), &VisionRequest{Prompt: "x"})
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestGeminiChatSystemInstruction(t *testing.T) {
	var got geminiRequest
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(geminiOK))
	})

	_, err := g.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			NewSystemMessage("Answer briefly."),
			NewUserMessage("Translate this to Hindi: hello"),
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "Answer briefly." {
		t.Errorf("system instruction = %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 1 || got.Contents[0].Role != "user" {
		t.Errorf("contents = %+v", got.Contents)
	}
	if got.GenerationConfig.MaxOutputTokens != 1024 {
		t.Errorf("maxOutputTokens = %d", got.GenerationConfig.MaxOutputTokens)
	}
}

func TestGeminiRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`))
			return
		}
		w.Write([]byte(geminiOK))
	})

	resp, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text() == "" {
		t.Error("expected text")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGeminiDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`))
	})

	_, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if apiErr.Message != "API key not valid" || apiErr.Code != "INVALID_ARGUMENT" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGeminiBlockedPrompt(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback": {"blockReason": "SAFETY"}}`))
	})

	_, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestGeminiSearch(t *testing.T) {
	var got geminiRequest
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"candidates": [{
		  "content": {"parts": [{"text": "It is sunny in Delhi."}]},
		  "groundingMetadata": {"groundingChunks": [
		    {"web": {"uri": "https://a.example", "title": "A"}},
		    {"web": {"uri": "", "title": "skip"}},
		    {"web": {"uri": "https://b.example", "title": "B"}},
		    {"web": {"uri": "https://c.example", "title": "C"}},
		    {"web": {"uri": "https://d.example", "title": "D"}}
		  ]}
		}]}`))
	})

	resp, err := g.Search(context.Background(), "weather in Delhi")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Content != "It is sunny in Delhi." {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(resp.Sources) != 3 || resp.Sources[0].URI != "https://a.example" || resp.Sources[1].Title != "B" {
		t.Errorf("Sources = %+v", resp.Sources)
	}
	if len(got.Tools) != 1 {
		t.Errorf("expected google_search tool, got %+v", got.Tools)
	}
	if _, ok := got.Tools[0]["google_search"]; !ok {
		t.Errorf("expected google_search tool, got %+v", got.Tools)
	}
}
