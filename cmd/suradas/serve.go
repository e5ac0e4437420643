package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/suradas/internal/app"
	"github.com/teslashibe/suradas/pkg/command"
	"github.com/teslashibe/suradas/pkg/tui"
	"github.com/teslashibe/suradas/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI and API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, logger, err := setup(ctx, cmd, os.Stderr, app.Options{Media: true, Metrics: true, Speak: true})
		if err != nil {
			return err
		}
		defer a.Shutdown()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.Config.Server.Addr
		}
		wcfg := web.DefaultConfig()
		wcfg.Addr = addr
		wcfg.AccessLog, _ = cmd.Flags().GetBool("access-log")

		opts := []web.Option{
			web.WithConfig(wcfg),
			web.WithMetrics(a.Metrics),
			web.WithLogger(logger),
		}
		if a.Grabber != nil {
			opts = append(opts, web.WithCamera(a.Grabber))
		}
		if a.Ingest != nil {
			opts = append(opts, web.WithIngest(a.Ingest))
		}
		if a.RemoteMic != nil {
			opts = append(opts, web.WithMicrophone(a.RemoteMic))
		}
		if a.Speaker != nil {
			opts = append(opts, web.WithSpeaker(a.Speaker))
		}
		srv := web.NewServer(a.Assistant, opts...)

		tui.PrintBanner(os.Stdout, command.Examples())
		a.Run(ctx)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8501)")
	serveCmd.Flags().Bool("access-log", false, "Log every HTTP request")
}
