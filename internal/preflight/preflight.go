package preflight

import (
	"context"
	"strings"

	"nwbconv/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Log directory (always checked)
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	// The history database is best effort and stays out of the blocking set;
	// the check command reports it through CheckHistoryDatabase.

	// Spike sorter
	if cfg.Conversion.RunSpikeSorting {
		statuses := CheckSystemDeps(ctx, cfg)
		for _, status := range statuses {
			results = append(results, resultFromStatus(status))
		}
		if strings.TrimSpace(cfg.Sorter.OutputDir) != "" {
			results = append(results, CheckDirectoryAccess("Sorter output directory", cfg.Sorter.OutputDir))
		}
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
