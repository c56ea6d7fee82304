package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nwbconv/internal/deps"
	"nwbconv/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, the run history and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := newPrinter(cmd)

			results := preflight.RunAll(cmd.Context(), cfg)
			if strings.TrimSpace(outputDir) != "" {
				results = append(results, preflight.CheckDirectoryAccess("Output directory", outputDir))
			}
			results = append(results, preflight.CheckHistoryDatabase(cfg.Paths.HistoryDB))

			p.heading("Preflight")
			for _, r := range results {
				printResult(p, r, sevError)
			}

			fmt.Fprintln(p.w)
			p.heading("Tools")
			printResult(p, preflight.CheckSorterFromConfig(cfg), sevWarn)
			missing := deps.Missing(preflight.CheckSystemDeps(cmd.Context(), cfg))

			failed := preflight.Failed(results)
			if len(failed) > 0 || len(missing) > 0 {
				return fmt.Errorf("%d check(s) failed, %d required tool(s) missing", len(failed), len(missing))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Also check that this output directory is writable")
	return cmd
}

func printResult(p printer, r preflight.Result, onFailure severity) {
	sev := sevOK
	if !r.Passed {
		sev = onFailure
	}
	p.status(r.Name, sev, r.Detail)
}
