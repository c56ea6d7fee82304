package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	userConfigPath    = "~/.config/nwbconv/config.toml"
	projectConfigName = "nwbconv.toml"
)

// DefaultConfigPath returns the per-user configuration location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(userConfigPath)
}

// locate resolves an explicit path as-is. Without one it tries the user
// config and then ./nwbconv.toml, falling back to the user path.
func locate(explicit string) (string, bool, error) {
	if explicit != "" {
		p, err := ExpandPath(explicit)
		if err != nil {
			return "", false, err
		}
		ok, err := isFile(p)
		return p, ok, err
	}

	user, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	project, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{user, project} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return user, false, nil
}

func isFile(p string) (bool, error) {
	info, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	}
	return !info.IsDir(), nil
}

// ExpandPath resolves a leading ~ and returns a cleaned absolute path. The
// empty string is returned unchanged.
func ExpandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", p, err)
	}
	return abs, nil
}

// EnsureDirectories creates the log directory, the history database parent
// and the sorter output directory when one is configured.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Sorter.OutputDir}
	if c.Paths.HistoryDB != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// parseSize accepts datasize strings such as "64GB"; "" and "0" mean no limit.
func parseSize(value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return 0, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(value)); err != nil {
		return 0, err
	}
	return size.Bytes(), nil
}
