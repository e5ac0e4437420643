// Command suradas is a voice and vision assistant: it listens or reads a
// typed command, captures camera frames, asks a hosted model and speaks
// the answer.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/suradas/internal/app"
	"github.com/teslashibe/suradas/internal/config"
	"github.com/teslashibe/suradas/internal/log"
	"github.com/teslashibe/suradas/pkg/debug"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "suradas",
	Short: "Voice and vision assistant",
	Long: `suradas captures a spoken or typed command, matches it against a small
keyword set and answers with a hosted multimodal model: describe the object
or currency in front of the camera, translate text, say where you are, or
search the web. Answers are printed and spoken.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose media pipeline logging")
	rootCmd.PersistentFlags().String("image", "", "Use a still image instead of the camera")
	rootCmd.PersistentFlags().String("session", "", "Session id for history")
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if on, _ := cmd.Flags().GetBool("debug"); on {
		debug.Enabled = true
		debug.Media = true
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// setup loads configuration, initializes logging to w and wires the app.
func setup(ctx context.Context, cmd *cobra.Command, w io.Writer, opts app.Options) (*app.App, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := log.Init(cfg.Log.Level, log.WithWriter(w), log.WithFormat(cfg.Log.Format))
	if w == io.Discard {
		debug.SetOutput(io.Discard)
	}

	if opts.ImagePath == "" {
		opts.ImagePath, _ = cmd.Flags().GetString("image")
	}
	a, err := app.New(ctx, cfg, opts, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func sessionFlag(cmd *cobra.Command, fallback string) string {
	if s, _ := cmd.Flags().GetString("session"); s != "" {
		return s
	}
	return fallback
}
