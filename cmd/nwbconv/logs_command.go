package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"nwbconv/internal/logging"
	"nwbconv/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var runID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log lines, optionally for one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out, err := logs.Tail(path, logs.TailOptions{Limit: lines, RunID: runID})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(out) == 0 {
				fmt.Fprintf(w, "No log lines in %s\n", path)
				return nil
			}
			for _, line := range out {
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Only show lines from the run with this id (prefix match)")
	return cmd
}
