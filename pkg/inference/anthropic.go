package inference

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/teslashibe/suradas/internal/retry"
)

const providerAnthropic = "anthropic"

// Anthropic implements Provider on top of the Claude Messages API.
// It is used as a fallback behind Gemini in a Chain.
type Anthropic struct {
	client anthropic.Client
	config *Config
	logger *slog.Logger
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(opts ...Option) (*Anthropic, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Model = string(anthropic.ModelClaude3_7SonnetLatest)
	cfg.VisionModel = ""
	cfg.SearchModel = ""
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerAnthropic, err)
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are driven by internal/retry so they share one policy.
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Anthropic{
		client: anthropic.NewClient(clientOpts...),
		config: cfg,
		logger: cfg.Logger.With("component", "inference.anthropic"),
	}, nil
}

// Chat generates a response using Claude.
func (a *Anthropic) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	system, turns := splitSystem(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(a.maxTokens(req.MaxTokens)),
		Messages:  make([]anthropic.MessageParam, 0, len(turns)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := a.send(ctx, params)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Message:      NewAssistantMessage(messageText(msg)),
		FinishReason: string(msg.StopReason),
		Usage:        messageUsage(msg),
		Model:        model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Vision analyzes JPEG frames using Claude.
func (a *Anthropic) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	if len(req.Frames) == 0 {
		return nil, WrapError(providerAnthropic, ErrNoImage)
	}

	model := req.Model
	if model == "" {
		model = a.config.VisionModel
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Frames)+1)
	for _, frame := range req.Frames {
		blocks = append(blocks, anthropic.NewImageBlockBase64(DetectMIME(frame), EncodeImageBytesBase64(frame)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	msg, err := a.send(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(a.maxTokens(req.MaxTokens)),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return nil, err
	}

	return &VisionResponse{
		Content:   messageText(msg),
		Usage:     messageUsage(msg),
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Capabilities returns Claude's capabilities.
func (a *Anthropic) Capabilities() Capabilities {
	return Capabilities{Chat: true, Vision: true}
}

// Health checks API connectivity.
func (a *Anthropic) Health(ctx context.Context) error {
	_, err := a.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("ping")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (a *Anthropic) Close() error {
	return nil
}

func (a *Anthropic) maxTokens(n int) int {
	if n > 0 {
		return n
	}
	return a.config.MaxTokens
}

func (a *Anthropic) send(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var msg *anthropic.Message
	err := retry.Do(ctx, a.config.retryConfig(), func(ctx context.Context) error {
		m, err := a.client.Messages.New(ctx, params)
		if err != nil {
			a.logger.Warn("messages request failed", "model", params.Model, "error", err)
			return convertAnthropicError(err)
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if messageText(msg) == "" {
		return nil, WrapError(providerAnthropic, ErrEmptyResponse)
	}
	return msg, nil
}

func messageText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func messageUsage(msg *anthropic.Message) Usage {
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}

// convertAnthropicError maps SDK errors onto APIError so callers classify
// both providers the same way.
func convertAnthropicError(err error) error {
	var sdkErr *anthropic.Error
	if errors.As(err, &sdkErr) {
		return &APIError{
			StatusCode: sdkErr.StatusCode,
			Message:    sdkErr.Error(),
			Provider:   providerAnthropic,
		}
	}
	return WrapError(providerAnthropic, err)
}

// Verify Anthropic implements Provider at compile time.
var _ Provider = (*Anthropic)(nil)
