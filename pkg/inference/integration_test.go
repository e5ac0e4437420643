//go:build integration

package inference

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests for real API calls.
// Run with: go test -tags=integration -v ./pkg/inference/...

func TestGeminiIntegration(t *testing.T) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		t.Skip("GOOGLE_API_KEY not set")
	}

	g, err := NewGemini(WithAPIKey(apiKey))
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	t.Run("Chat", func(t *testing.T) {
		resp, err := g.Chat(ctx, &ChatRequest{
			Messages: []Message{NewUserMessage("Translate this to Hindi: good morning")},
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		t.Logf("Response: %s (%dms)", resp.Text(), resp.LatencyMs)
	})

	t.Run("Search", func(t *testing.T) {
		resp, err := g.Search(ctx, "current time in New Delhi")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		t.Logf("Response: %s sources=%d", resp.Content, len(resp.Sources))
	})
}

func TestAnthropicIntegration(t *testing.T) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		t.Skip("ANTHROPIC_API_KEY not set")
	}

	a, err := NewAnthropic(WithAPIKey(apiKey))
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := a.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("Say hello in one word.")},
		MaxTokens: 16,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	t.Logf("Response: %s", resp.Text())
}
