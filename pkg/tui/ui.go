package tui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/command"
)

// UI is the tview application.
type UI struct {
	app        *tview.Application
	chat       *tview.TextView
	historyBox *tview.TextView
	input      *tview.InputField

	ctrl   *Controller
	render Renderer
	logger *slog.Logger

	busy sync.Mutex
}

// New builds the UI for session.
func New(a *assistant.Assistant, session string, logger *slog.Logger) *UI {
	if logger == nil {
		logger = slog.Default()
	}
	u := &UI{
		app:    tview.NewApplication(),
		ctrl:   NewController(a, session),
		render: NewRenderer(80),
		logger: logger.With("component", "tui"),
	}
	u.app.EnablePaste(true)
	u.app.EnableMouse(true)

	u.chat = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)
	u.chat.SetTitle("Conversation").SetBorder(true)
	u.chat.SetScrollable(true)

	u.historyBox = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	u.historyBox.SetTitle("History").SetBorder(true)

	u.input = tview.NewInputField().
		SetLabel("> ").
		SetFieldBackgroundColor(tcell.ColorDefault)
	u.input.SetTitle("Command").SetBorder(true)
	u.input.SetDoneFunc(u.onDone)

	a.OnReply(u.onReply)
	return u
}

// Run blocks until the user quits or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.chat, 0, 1, false).
		AddItem(u.input, 3, 0, true)
	root := tview.NewFlex().
		AddItem(left, 0, 3, true).
		AddItem(u.historyBox, 0, 1, false)

	u.writeChat("[green::b]suradas[-::-]  type a command or /help\n")
	for _, e := range command.Examples() {
		u.writeChat(fmt.Sprintf("[gray]  • %s[-]\n", tview.Escape(e)))
	}
	go u.refreshHistory(ctx)

	go func() {
		<-ctx.Done()
		u.app.Stop()
	}()
	return u.app.SetRoot(root, true).SetFocus(u.input).Run()
}

func (u *UI) onDone(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	line := u.input.GetText()
	u.input.SetText("")
	action, _, err := Parse(line)
	if err != nil {
		u.writeChat(fmt.Sprintf("[red]%s: %s[-]\n", err, tview.Escape(line)))
		return
	}

	switch action {
	case ActionNone:
		return
	case ActionQuit:
		u.app.Stop()
		return
	case ActionHelp:
		for _, h := range Help {
			u.writeChat("[gray]" + tview.Escape(h) + "[-]\n")
		}
		return
	case ActionCommand:
		u.writeChat(fmt.Sprintf("[red::b]You:[-::-] %s\n", tview.Escape(line)))
	}

	go u.handle(line)
}

// handle runs a line off the UI goroutine. Replies arrive through onReply.
func (u *UI) handle(line string) {
	if !u.busy.TryLock() {
		u.writeChat("[yellow]Still working on the last request...[-]\n")
		return
	}
	defer u.busy.Unlock()

	u.app.QueueUpdateDraw(func() { u.input.SetDisabled(true) })
	defer u.app.QueueUpdateDraw(func() { u.input.SetDisabled(false) })

	ctx := context.Background()
	res := u.ctrl.Handle(ctx, line)
	switch {
	case res.Action == ActionHistory && res.Err == nil:
		u.writeChat(FormatHistory(res.History))
	case res.Err != nil && res.Action == ActionCapture:
		u.writeChat(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(res.Err.Error())))
	}
	u.refreshHistory(ctx)
}

func (u *UI) onReply(r assistant.Reply) {
	if r.Session != u.ctrl.Session() {
		return
	}
	u.writeChat(FormatReply(r, u.render) + "\n")
}

func (u *UI) refreshHistory(ctx context.Context) {
	entries, err := u.ctrl.assistant.History(ctx, u.ctrl.Session())
	if err != nil {
		u.logger.Warn("history lookup failed", "error", err)
		return
	}
	text := FormatHistory(entries)
	u.app.QueueUpdateDraw(func() { u.historyBox.SetText(text) })
}

func (u *UI) writeChat(text string) {
	u.app.QueueUpdateDraw(func() {
		fmt.Fprint(u.chat, text)
		u.chat.ScrollToEnd()
	})
}
