package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nwbconv/internal/config"
	"nwbconv/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	dataDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("NWBCONV_SORTER", "")

	cfg := testsupport.NewConfig(t)
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "error"

	configPath := filepath.Join(homeDir, ".config", "nwbconv", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	dataDir := filepath.Join(base, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		dataDir:    dataDir,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlog_dir = %q\nhistory_db = %q\n\n[sorter]\noutput_dir = %q\n\n[logging]\nformat = %q\nlevel = %q\n",
		cfg.Paths.LogDir,
		cfg.Paths.HistoryDB,
		cfg.Sorter.OutputDir,
		cfg.Logging.Format,
		cfg.Logging.Level,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeRawSession writes a small SpikeGLX recording and a full descriptor
// into the env data directory.
func (env *cliTestEnv) writeRawSession(t *testing.T, name string) (binPath, descPath string) {
	t.Helper()
	binPath = testsupport.WriteSpikeGLX(t, env.dataDir, name, 4, 50, 30000)
	descPath = testsupport.WriteDescriptor(t, env.dataDir, name+".yml", testsupport.SessionDescriptor)
	return binPath, descPath
}

func descriptorWithoutSubject() string {
	body := testsupport.SessionDescriptor
	start := strings.Index(body, "Subject:\n")
	end := strings.Index(body, "Ecephys:\n")
	return body[:start] + body[end:]
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
