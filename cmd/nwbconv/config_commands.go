package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"nwbconv/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or validate the nwbconv configuration file",
	}
	cmd.AddCommand(newConfigValidateCommand(ctx), newConfigInitCommand())
	return cmd
}

// configTarget resolves --path, falling back to the XDG default location.
func configTarget(flagValue string) (string, error) {
	if flagValue = strings.TrimSpace(flagValue); flagValue != "" {
		return config.ExpandPath(flagValue)
	}
	return config.DefaultConfigPath()
}

func newConfigInitCommand() *cobra.Command {
	var pathFlag string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(pathFlag)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			_, statErr := os.Stat(target)
			switch {
			case statErr == nil && !overwrite:
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
				return fmt.Errorf("check config path: %w", statErr)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			p := newPrinter(cmd)
			fmt.Fprintf(p.w, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(p.w, "Set [sorter] command or NWBCONV_SORTER before using --sort.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report the effective paths",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configFlagValue())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			p := newPrinter(cmd)
			source := path
			if !exists {
				source += " (not found, defaults in effect)"
			}
			for _, line := range [][2]string{
				{"Config path", source},
				{"Log directory", cfg.Paths.LogDir},
				{"History database", cfg.Paths.HistoryDB},
				{"Sorter output", cfg.Sorter.OutputDir},
				{"Spike sorting", yesNo(cfg.Conversion.RunSpikeSorting)},
			} {
				fmt.Fprintf(p.w, "%s: %s\n", line[0], line[1])
			}
			fmt.Fprintln(p.w, "Configuration valid")
			return nil
		},
	}
}
