package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"nwbconv/internal/config"
	"nwbconv/internal/deps"
	"nwbconv/internal/history"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputDirectory verifies that the directory an NWB file will be
// written into accepts new files.
func CheckOutputDirectory(output string) Result {
	dir := filepath.Dir(output)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return CheckDirectoryAccess("Output directory", dir)
}

// CheckSystemDeps evaluates the external binaries the configured pipeline
// invokes. Both RunAll and the CLI check command use it so the requirement
// list lives in one place.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Spike sorter",
			Command:     cfg.SorterBinary(),
			Description: "Required when spike sorting is enabled",
			Optional:    !cfg.Conversion.RunSpikeSorting,
		},
	}
	return deps.CheckBinaries(requirements)
}

// CheckSorterFromConfig reports the sorter status for display.
func CheckSorterFromConfig(cfg *config.Config) Result {
	const name = "Spike sorter"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.SorterBinary()) == "" {
		if !cfg.Conversion.RunSpikeSorting {
			return Result{Name: name, Passed: true, Detail: "Not configured (sorting disabled)"}
		}
		return Result{Name: name, Detail: "Missing command"}
	}
	statuses := CheckSystemDeps(context.Background(), cfg)
	if len(statuses) == 0 {
		return Result{Name: name, Detail: "Unknown"}
	}
	return resultFromStatus(statuses[0])
}

// CheckHistoryDatabase opens the run history database and confirms its
// schema matches this build.
func CheckHistoryDatabase(path string) Result {
	const name = "History database"

	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created on first run)", path)}
	}
	store, err := history.Open(path)
	if err != nil {
		if errors.Is(err, history.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema mismatch, remove the file to reset)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema ok)", path)}
}

func resultFromStatus(status deps.Status) Result {
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: fmt.Sprintf("%s (found)", status.Path)}
	}
	detail := status.Detail
	if status.Optional {
		return Result{Name: status.Name, Passed: true, Detail: detail + " (optional)"}
	}
	return Result{Name: status.Name, Detail: detail}
}
