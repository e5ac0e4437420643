package translate

import (
	"context"

	"github.com/teslashibe/suradas/pkg/command"
	"github.com/teslashibe/suradas/pkg/inference"
)

const backendModel = "model"

// Model translates by prompting a chat model with
// "Translate this to {lang}: {text}".
type Model struct {
	provider inference.Provider
}

// NewModel creates a prompt-based translator.
func NewModel(p inference.Provider) *Model {
	return &Model{provider: p}
}

// Translate implements Translator.
func (m *Model) Translate(ctx context.Context, text, target string) (*Result, error) {
	text, target, err := validate(text, target)
	if err != nil {
		return nil, err
	}

	resp, err := m.provider.Chat(ctx, &inference.ChatRequest{
		Messages: []inference.Message{
			inference.NewUserMessage(command.TranslatePrompt(text, target)),
		},
	})
	if err != nil {
		return nil, &BackendError{Backend: backendModel, Err: err}
	}

	return &Result{Text: resp.Text(), Target: target, Backend: backendModel}, nil
}

var _ Translator = (*Model)(nil)
