// Package tui is the terminal client: a chat pane, the session's history
// and an input line, driven by the same assistant as the web UI.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/command"
	"github.com/teslashibe/suradas/pkg/history"
)

// Action is what one line of input asks the client to do.
type Action int

const (
	ActionNone Action = iota
	ActionCommand
	ActionListen
	ActionCapture
	ActionTranslate
	ActionHistory
	ActionHelp
	ActionQuit
)

// ErrUnknownSlash is returned for unrecognized /commands.
var ErrUnknownSlash = errors.New("tui: unknown command")

// Help lists the slash commands.
var Help = []string{
	"/listen            speak a command",
	"/capture [kind]    describe the camera frame (object or currency)",
	"/history           show this session's commands",
	"/help              show this help",
	"/quit              exit",
}

// Result is the outcome of handling one input line.
type Result struct {
	Action  Action
	Heard   string
	Replies []assistant.Reply
	History []history.Entry
	Err     error
}

// Controller holds the two-step state of a terminal session: a vision
// command waiting for /capture, or a translation waiting for its text.
type Controller struct {
	assistant *assistant.Assistant
	session   string

	pendingKind command.Kind
	pendingLang string
}

// NewController creates a controller for session.
func NewController(a *assistant.Assistant, session string) *Controller {
	if session == "" {
		session = assistant.DefaultSession
	}
	return &Controller{assistant: a, session: session}
}

// Session returns the session id.
func (c *Controller) Session() string { return c.session }

// Pending reports the awaited follow-up, if any.
func (c *Controller) Pending() (command.Kind, string) {
	return c.pendingKind, c.pendingLang
}

// Parse classifies a line without running it.
func Parse(line string) (Action, string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ActionNone, "", nil
	}
	if !strings.HasPrefix(line, "/") {
		return ActionCommand, line, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "/listen", "/voice":
		return ActionListen, arg, nil
	case "/capture":
		return ActionCapture, arg, nil
	case "/history":
		return ActionHistory, arg, nil
	case "/help":
		return ActionHelp, arg, nil
	case "/quit", "/exit", "/bye":
		return ActionQuit, arg, nil
	}
	return ActionNone, name, ErrUnknownSlash
}

// Handle runs one line of input.
func (c *Controller) Handle(ctx context.Context, line string) Result {
	ctx = assistant.WithSession(ctx, c.session)
	action, arg, err := Parse(line)
	if err != nil {
		return Result{Action: ActionNone, Err: err}
	}

	switch action {
	case ActionCommand:
		if c.pendingLang != "" {
			lang := c.pendingLang
			c.pendingLang = ""
			return Result{Action: ActionTranslate, Replies: []assistant.Reply{c.assistant.Translate(ctx, arg, lang)}}
		}
		return c.submit(ctx, arg, history.SourceTUI)

	case ActionListen:
		heard, err := c.assistant.Listen(ctx)
		if err != nil {
			return Result{Action: action, Err: err}
		}
		res := c.submit(ctx, heard, history.SourceVoice)
		res.Action = ActionListen
		res.Heard = heard
		return res

	case ActionCapture:
		kind := c.pendingKind
		if arg != "" {
			kind = command.ParseKind(arg)
		}
		if !kind.NeedsFrame() {
			return Result{Action: action, Err: errors.New("nothing to capture: ask about an object or currency first")}
		}
		c.pendingKind = ""
		return Result{Action: action, Replies: []assistant.Reply{c.assistant.Capture(ctx, kind)}}

	case ActionHistory:
		entries, err := c.assistant.History(ctx, c.session)
		return Result{Action: action, History: entries, Err: err}
	}
	return Result{Action: action}
}

func (c *Controller) submit(ctx context.Context, text string, source history.Source) Result {
	r := c.assistant.Submit(ctx, c.session, text, source)
	c.pendingKind, c.pendingLang = "", ""
	if r.NeedsFrame {
		c.pendingKind = r.Command
	}
	if r.NeedsText {
		c.pendingLang = r.TargetLanguage
	}
	return Result{Action: ActionCommand, Replies: []assistant.Reply{r}}
}
