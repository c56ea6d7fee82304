package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nwbconv/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	if result := CheckOutputDirectory(filepath.Join(dir, "session.nwb")); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckOutputDirectory(filepath.Join(dir, "missing", "session.nwb")); result.Passed {
		t.Fatal("expected failure for missing parent directory")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	// Log directory only; history is not a blocking check.
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_SortingChecksSorterBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithSorter("fake-sorter"),
		testsupport.WithStubbedBinaries("fake-sorter"),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	found := false
	for _, r := range results {
		if r.Name == "Spike sorter" {
			found = true
			if !r.Passed {
				t.Errorf("sorter check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected sorter check in results")
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_MissingSorterFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSorter("clearly-not-present-sorter"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Spike sorter" {
		t.Fatalf("expected only the sorter check to fail, got %+v", failed)
	}
}

func TestCheckSorterFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sorter.Command = ""
	if result := CheckSorterFromConfig(cfg); !result.Passed || !strings.Contains(result.Detail, "disabled") {
		t.Fatalf("expected disabled sorter to pass, got %+v", result)
	}

	cfg.Conversion.RunSpikeSorting = true
	if result := CheckSorterFromConfig(cfg); result.Passed || result.Detail != "Missing command" {
		t.Fatalf("expected missing command failure, got %+v", result)
	}

	if result := CheckSorterFromConfig(nil); result.Passed {
		t.Fatal("expected nil config to fail")
	}
}

func TestCheckHistoryDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckHistoryDatabase(cfg.Paths.HistoryDB); !result.Passed || !strings.Contains(result.Detail, "created on first run") {
		t.Fatalf("expected missing database to pass, got %+v", result)
	}

	testsupport.MustOpenHistory(t, cfg)
	if result := CheckHistoryDatabase(cfg.Paths.HistoryDB); !result.Passed {
		t.Fatalf("expected existing database to pass, got %+v", result)
	}

	if result := CheckHistoryDatabase(""); !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected empty path to report disabled, got %+v", result)
	}
}
