package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"nwbconv/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")
	cfgVal.Sorter.OutputDir = filepath.Join(base, "sorted")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSorter sets the sorter command and enables sorting by default.
func WithSorter(command string, args ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sorter.Command = command
		b.cfg.Sorter.Args = args
		b.cfg.Conversion.IncludeRaw = true
		b.cfg.Conversion.RunSpikeSorting = true
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			WriteStubBinary(b.t, b.baseDir, name, "exit 0\n")
		}
	}
}

// WriteStubBinary writes a shell script named name under <base>/bin, puts
// that directory at the front of PATH for the test, and returns the script
// path.
func WriteStubBinary(t testing.TB, base, name, body string) string {
	t.Helper()
	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
