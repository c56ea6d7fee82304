package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"nwbconv/internal/metadata"
	"nwbconv/internal/pipeline"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags featureFlags
	var keepGoing bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "batch <experiments.yml>",
		Short: "Convert every session listed in a multi-document YAML file",
		Long: `Convert every session listed in a multi-document YAML file.

Each document names input_file (or input_files), metafile and optionally
output_file plus per-session include_processed, include_raw and
run_spike_sorting overrides. Relative paths resolve against the batch file.
Sessions without output_file are written to --output-dir using the
descriptor's Output.file_name template.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := metadata.LoadAll(args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("batch file %s has no documents", args[0])
			}
			dir := outputDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}

			out := cmd.OutOrStdout()
			var failures []error
			for i, entry := range entries {
				opts := pipeline.OptionsFromConfig(cfg)
				applyEntryOverrides(entry, &opts)
				flags.apply(cmd, &opts)

				result, err := ctx.runConversion(cmd.Context(), conversionRequest{
					Sources:      entry.Inputs(),
					MetadataPath: entry.Metafile,
					Output:       entry.OutputFile,
					OutputDir:    dir,
					Options:      opts,
				})
				if err != nil {
					err = fmt.Errorf("document %d (%s): %w", i, entry.Metafile, err)
					if !keepGoing {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Failed %v\n", err)
					failures = append(failures, err)
					continue
				}
				fmt.Fprintf(out, "Saved %s (%.2f MB)\n", result.Path, result.SizeMB)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d conversions failed: %w", len(failures), len(entries), errors.Join(failures...))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue with the next document after a failed conversion")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for sessions without output_file (default: batch file directory)")
	return cmd
}

func applyEntryOverrides(entry metadata.BatchEntry, opts *pipeline.Options) {
	if entry.IncludeProcessed != nil {
		opts.IncludeProcessed = *entry.IncludeProcessed
	}
	if entry.IncludeRaw != nil {
		opts.IncludeRaw = *entry.IncludeRaw
	}
	if entry.RunSpikeSorting != nil {
		opts.RunSpikeSorting = *entry.RunSpikeSorting
	}
}
