package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"nwbconv/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale spike sorter output directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Sorter.OutputDir == "" {
				return errors.New("sorter.output_dir is not configured; sorter output lives beside each recording")
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			result := staging.CleanStale(cmd.Context(), cfg.Sorter.OutputDir, staging.CleanOptions{
				OlderThan: olderThan,
				DryRun:    dryRun,
				Logger:    logger,
			})
			out := cmd.OutOrStdout()
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, dir := range result.Removed {
				fmt.Fprintf(out, "%s %s (%s)\n", verb, dir.Path, datasize.ByteSize(dir.Size).HumanReadable())
			}
			fmt.Fprintf(out, "%s %d director(ies), %s\n", verb, len(result.Removed), datasize.ByteSize(result.FreedBytes()).HumanReadable())
			if len(result.Failures) > 0 {
				first := result.Failures[0]
				return fmt.Errorf("%d director(ies) could not be removed; first: %s: %w", len(result.Failures), first.Path, first.Err)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Minimum age of directories to remove")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List directories without removing them")
	return cmd
}
