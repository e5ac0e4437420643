package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/suradas/internal/retry"
)

const providerGemini = "gemini"

const searchInstruction = "You are a helpful assistant that searches the web for real-time information. " +
	"Always use Google Search to find current, accurate information. " +
	"Be concise but informative."

// Gemini implements the Provider interface for Google's Gemini API.
// Requests go to the REST generateContent endpoint directly.
type Gemini struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}

	return &Gemini{
		config: cfg,
		http:   cfg.httpClient(),
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Tools             []map[string]any       `json:"tools,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason      string `json:"finishReason"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}

func (r *geminiResponse) usage() Usage {
	return Usage{
		PromptTokens:     r.UsageMetadata.PromptTokenCount,
		CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      r.UsageMetadata.TotalTokenCount,
	}
}

// Chat generates a chat completion using Gemini.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	system, turns := splitSystem(req.Messages)
	payload := geminiRequest{
		Contents:         convertMessages(turns),
		GenerationConfig: g.generationConfig(req.MaxTokens, req.Temperature),
	}
	if system != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	result, err := g.generate(ctx, model, &payload)
	if err != nil {
		return nil, err
	}

	text := result.text()
	if text == "" {
		return nil, WrapError(providerGemini, g.emptyReason(result))
	}

	finish := ""
	if len(result.Candidates) > 0 {
		finish = result.Candidates[0].FinishReason
	}

	return &ChatResponse{
		Message:      NewAssistantMessage(text),
		FinishReason: finish,
		Usage:        result.usage(),
		Model:        model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Vision analyzes JPEG frames using Gemini.
func (g *Gemini) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	if len(req.Frames) == 0 {
		return nil, WrapError(providerGemini, ErrNoImage)
	}

	model := req.Model
	if model == "" {
		model = g.config.VisionModel
	}

	parts := []geminiPart{{Text: req.Prompt}}
	for _, frame := range req.Frames {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: DetectMIME(frame),
			Data:     EncodeImageBytesBase64(frame),
		}})
	}

	payload := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: g.generationConfig(req.MaxTokens, req.Temperature),
	}

	result, err := g.generate(ctx, model, &payload)
	if err != nil {
		return nil, err
	}

	text := result.text()
	if text == "" {
		return nil, WrapError(providerGemini, g.emptyReason(result))
	}

	return &VisionResponse{
		Content:   text,
		Usage:     result.usage(),
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Search answers query using Gemini with Google Search grounding.
// Up to three cited sources are returned alongside the answer.
func (g *Gemini) Search(ctx context.Context, query string) (*SearchResponse, error) {
	start := time.Now()

	model := g.config.SearchModel
	if model == "" {
		model = g.config.Model
	}

	payload := geminiRequest{
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: query}}}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: searchInstruction}}},
		Tools:             []map[string]any{{"google_search": map[string]any{}}},
		GenerationConfig:  geminiGenerationConfig{Temperature: 0.2, MaxOutputTokens: 400},
	}

	result, err := g.generate(ctx, model, &payload)
	if err != nil {
		return nil, err
	}

	text := result.text()
	if text == "" {
		return nil, WrapError(providerGemini, fmt.Errorf("no search results"))
	}

	resp := &SearchResponse{
		Content:   text,
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	for _, chunk := range result.Candidates[0].GroundingMetadata.GroundingChunks {
		if len(resp.Sources) == 3 {
			break
		}
		if chunk.Web.URI == "" {
			continue
		}
		resp.Sources = append(resp.Sources, Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return resp, nil
}

// Capabilities returns Gemini's capabilities.
func (g *Gemini) Capabilities() Capabilities {
	return Capabilities{
		Chat:   true,
		Vision: true,
		Search: true,
	}
}

// Health checks API connectivity.
func (g *Gemini) Health(ctx context.Context) error {
	_, err := g.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("ping")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

func (g *Gemini) generationConfig(maxTokens int, temp float64) geminiGenerationConfig {
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	if temp == 0 {
		temp = g.config.Temperature
	}
	return geminiGenerationConfig{Temperature: temp, MaxOutputTokens: maxTokens}
}

// generate posts payload to generateContent, retrying transient failures.
func (g *Gemini) generate(ctx context.Context, model string, payload *geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(g.config.BaseURL, "/"), model)

	var result geminiResponse
	attempt := 0
	err = retry.Do(ctx, g.config.retryConfig(), func(ctx context.Context) error {
		attempt++
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return WrapError(providerGemini, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", g.config.APIKey)

		resp, err := g.http.Do(httpReq)
		if err != nil {
			g.logger.Warn("request failed", "model", model, "attempt", attempt, "error", err)
			return WrapError(providerGemini, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			apiErr := parseGeminiError(resp)
			g.logger.Warn("api error", "model", model, "attempt", attempt, "status", resp.StatusCode)
			return apiErr
		}

		result = geminiResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("generate complete", "model", model, "attempts", attempt)
	return &result, nil
}

func (g *Gemini) emptyReason(r *geminiResponse) error {
	if r.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w: blocked (%s)", ErrEmptyResponse, r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) > 0 && r.Candidates[0].FinishReason != "" && r.Candidates[0].FinishReason != "STOP" {
		return fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, r.Candidates[0].FinishReason)
	}
	return ErrEmptyResponse
}

// convertMessages converts our Message format to Gemini's format.
func convertMessages(msgs []Message) []geminiContent {
	contents := make([]geminiContent, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}
	return contents
}

// parseGeminiError reads and parses an error response.
func parseGeminiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := strings.TrimSpace(string(body))
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerGemini,
	}
}

// Verify Gemini implements Provider at compile time.
var (
	_ Provider = (*Gemini)(nil)
	_ Searcher = (*Gemini)(nil)
)
