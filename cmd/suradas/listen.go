package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/suradas/internal/app"
	"github.com/teslashibe/suradas/pkg/history"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Listen for one spoken command and answer it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, _, err := setup(ctx, cmd, os.Stderr, app.Options{Media: true, Speak: true})
		if err != nil {
			return err
		}
		defer a.Shutdown()
		a.Run(ctx)

		session := sessionFlag(cmd, "cli")
		heard, err := a.Assistant.Listen(ctx)
		if err != nil {
			return err
		}
		followUp, _ := cmd.Flags().GetString("text")
		printReply(runCommand(ctx, a.Assistant, session, heard, followUp, history.SourceVoice))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().String("text", "", "Text to translate if the spoken command is a translation")
}
