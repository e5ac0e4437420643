package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/suradas/internal/app"
	"github.com/teslashibe/suradas/pkg/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the terminal client",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// tview owns the terminal; logs and console output go to a file.
		var w io.Writer = io.Discard
		stdout := os.Stdout
		defer func() { os.Stdout = stdout }()
		if devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0); err == nil {
			defer devnull.Close()
			os.Stdout = devnull
		}
		if path, _ := cmd.Flags().GetString("log-file"); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer f.Close()
			w = f
			os.Stdout = f
		}

		a, logger, err := setup(ctx, cmd, w, app.Options{Media: true, Speak: true})
		if err != nil {
			return err
		}
		defer a.Shutdown()

		a.Run(ctx)
		return tui.New(a.Assistant, sessionFlag(cmd, "tui"), logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().String("log-file", filepath.Join(os.TempDir(), "suradas-tui.log"), "Write logs here instead of the terminal")
}
