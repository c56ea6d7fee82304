package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nwbconv/internal/pipeline"
)

type featureFlags struct {
	processed bool
	raw       bool
	sort      bool
	overwrite bool
}

func (f *featureFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.processed, "processed", true, "Include processed behavior and spike-sorting data from the .mat source")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "Include the raw SpikeGLX recording as acquisition")
	cmd.Flags().BoolVar(&f.sort, "sort", false, "Run the configured spike sorter on the raw recording")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", true, "Replace an existing output file")
}

// apply copies only the flags set on the command line over opts, so config
// defaults survive when a flag is omitted.
func (f *featureFlags) apply(cmd *cobra.Command, opts *pipeline.Options) {
	if cmd.Flags().Changed("processed") {
		opts.IncludeProcessed = f.processed
	}
	if cmd.Flags().Changed("raw") {
		opts.IncludeRaw = f.raw
	}
	if cmd.Flags().Changed("sort") {
		opts.RunSpikeSorting = f.sort
		if f.sort && !cmd.Flags().Changed("raw") {
			opts.IncludeRaw = true
		}
	}
	if cmd.Flags().Changed("overwrite") {
		opts.Overwrite = f.overwrite
	}
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags featureFlags

	cmd := &cobra.Command{
		Use:   "convert <source>... <output.nwb> <metadata.yml>",
		Short: "Convert one recording session to an NWB file",
		Long: `Convert one recording session to an NWB file.

Sources are classified by extension: a SpikeGLX .bin (with its .meta beside
it) and a processed MATLAB .mat file. The last two arguments are the output
path and the YAML session descriptor.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := pipeline.OptionsFromConfig(cfg)
			flags.apply(cmd, &opts)

			n := len(args)
			req := conversionRequest{
				Sources:      args[:n-2],
				Output:       args[n-2],
				MetadataPath: args[n-1],
				Options:      opts,
			}
			result, err := ctx.runConversion(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%.2f MB)\n", result.Path, result.SizeMB)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
