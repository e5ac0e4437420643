package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the startup banner and the example commands.
func PrintBanner(w io.Writer, examples []string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  ___ _  _ _ _ __ _ __| |__ _ ___", "#38bdf8"},
		{" (_-<| || | '_/ _` / _` / _` (_-<", "#818cf8"},
		{" /__/ \\_,_|_| \\__,_\\__,_\\__,_/__/", "#c084fc"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)

	if len(examples) == 0 {
		return
	}
	fmt.Fprintln(w, termenv.String("Try saying:").Bold())
	for _, e := range examples {
		fmt.Fprintf(w, "  • %s\n", e)
	}
	fmt.Fprintln(w)
}
