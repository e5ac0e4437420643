package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/suradas/internal/app"
	"github.com/teslashibe/suradas/pkg/assistant"
	"github.com/teslashibe/suradas/pkg/history"
)

var askCmd = &cobra.Command{
	Use:   "ask <command>",
	Short: "Run one command and print the answer",
	Long: `Run one command. Vision commands capture a frame right away and
translate commands read the text to translate from --text.

  suradas ask "where am i"
  suradas ask --image note.jpg "detect currency"
  suradas ask --text "good morning" "translate to French"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		speak, _ := cmd.Flags().GetBool("speak")
		a, _, err := setup(ctx, cmd, os.Stderr, app.Options{Media: true, Speak: speak})
		if err != nil {
			return err
		}
		defer a.Shutdown()
		a.Run(ctx)

		text, _ := cmd.Flags().GetString("text")
		r := runCommand(ctx, a.Assistant, sessionFlag(cmd, "cli"), strings.Join(args, " "), text, history.SourceCLI)
		printReply(r)
		if r.Failed() {
			return fmt.Errorf("%s", r.Text)
		}
		return nil
	},
}

// runCommand submits text and completes the two-step flows in one go.
func runCommand(ctx context.Context, a *assistant.Assistant, session, text, followUp string, source history.Source) assistant.Reply {
	ctx = assistant.WithSession(ctx, session)
	r := a.Submit(ctx, session, text, source)
	switch {
	case r.NeedsFrame:
		printReply(r)
		return a.Capture(ctx, r.Command)
	case r.NeedsText && followUp != "":
		printReply(r)
		return a.Translate(ctx, followUp, r.TargetLanguage)
	}
	return r
}

func printReply(r assistant.Reply) {
	icon := map[assistant.Level]string{
		assistant.LevelInfo:    "💬",
		assistant.LevelSuccess: "✅",
		assistant.LevelWarning: "⚠️ ",
		assistant.LevelError:   "❌",
	}[r.Level]
	if r.Title != "" {
		fmt.Printf("%s %s\n", icon, r.Title)
	} else {
		fmt.Print(icon, " ")
	}
	if r.Notice != "" && r.Notice != r.Text {
		fmt.Println(r.Notice)
	}
	fmt.Println(r.Text)
	if r.Labels != "" {
		fmt.Println("Detected:", r.Labels)
	}
	for _, s := range r.Sources {
		fmt.Printf("  - %s %s\n", s.Title, s.URI)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().String("text", "", "Text to translate for translate commands")
	askCmd.Flags().Bool("speak", false, "Speak the answer")
}
