package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/suradas/internal/app"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a session's commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, _, err := setup(ctx, cmd, os.Stderr, app.Options{})
		if err != nil {
			return err
		}
		defer a.Shutdown()

		if all, _ := cmd.Flags().GetBool("sessions"); all {
			sessions, err := a.History.Sessions(ctx)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Println(s)
			}
			return nil
		}

		entries, err := a.Assistant.History(ctx, sessionFlag(cmd, "cli"))
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No commands yet.")
			return nil
		}
		for i, e := range entries {
			fmt.Printf("%3d. %s  %s  (%s)\n", i+1, e.At.Local().Format("2006-01-02 15:04:05"), e.Command, e.Source)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("json", false, "Print entries as JSON")
	historyCmd.Flags().Bool("sessions", false, "List session ids instead")
}
