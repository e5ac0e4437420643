package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rivo/tview"

	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/history"
)

// Renderer turns markdown into text for the chat pane.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer wrapped at width columns.
// Terminal detection is unreliable once tview owns the screen, so the
// dark style is fixed.
func NewRenderer(width int) Renderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return plain
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return "", err
		}
		return tview.TranslateANSI(strings.TrimSpace(out)), nil
	}
}

func plain(markdown string) (string, error) {
	return tview.Escape(markdown), nil
}

var levelColor = map[assistant.Level]string{
	assistant.LevelInfo:    "aqua",
	assistant.LevelSuccess: "green",
	assistant.LevelWarning: "yellow",
	assistant.LevelError:   "red",
}

// FormatReply renders r for a tview TextView with dynamic colors.
func FormatReply(r assistant.Reply, render Renderer) string {
	if render == nil {
		render = plain
	}
	var b strings.Builder
	color := levelColor[r.Level]
	if color == "" {
		color = "white"
	}

	title := r.Title
	if title == "" {
		title = "suradas"
	}
	fmt.Fprintf(&b, "[%s::b]%s:[-::-]\n", color, tview.Escape(title))
	if r.Notice != "" && r.Notice != r.Text {
		fmt.Fprintf(&b, "[gray]%s[-]\n", tview.Escape(r.Notice))
	}

	body := r.Text
	if r.Level == assistant.LevelSuccess {
		if out, err := render(body); err == nil {
			body = out
		} else {
			body = tview.Escape(body)
		}
	} else {
		body = tview.Escape(body)
	}
	b.WriteString(body)
	b.WriteString("\n")

	if r.Labels != "" {
		fmt.Fprintf(&b, "[gray]Detected: %s[-]\n", tview.Escape(r.Labels))
	}
	for _, s := range r.Sources {
		fmt.Fprintf(&b, "[gray]- %s %s[-]\n", tview.Escape(s.Title), tview.Escape(s.URI))
	}
	if r.NeedsFrame {
		b.WriteString("[gray]Type /capture when the camera is pointed at it.[-]\n")
	}
	return b.String()
}

// FormatHistory renders entries as a numbered list.
func FormatHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return "[gray]No commands yet.[-]\n"
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s [gray](%s)[-]\n", i+1, tview.Escape(e.Command), e.At.Local().Format("15:04:05"))
	}
	return b.String()
}
