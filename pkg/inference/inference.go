// Package inference provides a unified interface for hosted chat and vision
// models.
//
// Vision calls take JPEG frames as produced by the camera grabber, so a
// captured frame is forwarded to the model without re-encoding.
//
// Example usage:
//
//	gemini, _ := inference.NewGemini(
//	    inference.WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
//	    inference.WithVisionModel("gemini-1.5-pro"),
//	)
//	defer gemini.Close()
//
//	resp, _ := gemini.Vision(ctx, &inference.VisionRequest{
//	    Frames: [][]byte{jpegFrame},
//	    Prompt: "Describe all visible objects.",
//	})
package inference

import (
	"context"
)

// Provider is the unified inference interface for chat and vision.
// All implementations must satisfy this interface.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Vision analyzes one or more JPEG frames with a text prompt.
	Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// Capabilities returns what features this provider supports.
	Capabilities() Capabilities

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Searcher answers a query with live web results.
type Searcher interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// Capabilities describes what features a provider supports.
type Capabilities struct {
	Chat   bool // Supports chat completions
	Vision bool // Supports image input
	Search bool // Supports grounded web search
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation history.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// VisionRequest for image analysis.
type VisionRequest struct {
	// Frames are JPEG-encoded images.
	Frames [][]byte

	// Prompt describing what to analyze or ask about the image.
	Prompt string

	// Model overrides the default vision model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness.
	Temperature float64
}

// VisionResponse from image analysis.
type VisionResponse struct {
	// Content is the natural language response.
	Content string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for analysis.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// SearchResponse is a grounded answer with its web sources.
type SearchResponse struct {
	Content   string
	Sources   []Source
	Model     string
	LatencyMs int64
}

// Source is a web page cited by a grounded answer.
type Source struct {
	Title string
	URI   string
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Text returns the first message's text content, or "".
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	return r.Message.Content
}
