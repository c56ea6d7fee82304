package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains directory and database locations.
type Paths struct {
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Conversion contains default feature flags applied when the CLI does not
// override them.
type Conversion struct {
	IncludeProcessed bool `toml:"include_processed"`
	IncludeRaw       bool `toml:"include_raw"`
	RunSpikeSorting  bool `toml:"run_spike_sorting"`
	Overwrite        bool `toml:"overwrite"`
	// UniformTolerance is the relative deviation between consecutive
	// position timestamps tolerated before a non-uniform sampling warning.
	UniformTolerance float64 `toml:"uniform_tolerance"`
}

// Sorter describes the external spike-sorting command.
type Sorter struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	OutputDir      string   `toml:"output_dir"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// SpikeGLX contains raw acquisition limits.
type SpikeGLX struct {
	MaxRawSize string `toml:"max_raw_size"`
	// ConversionVolts overrides the per-bit conversion derived from the .meta
	// file when positive.
	ConversionVolts float64 `toml:"conversion_volts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the decoded nwbconv.toml. Sections map one-to-one onto the
// structs above.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Conversion Conversion `toml:"conversion"`
	Sorter     Sorter     `toml:"sorter"`
	SpikeGLX   SpikeGLX   `toml:"spikeglx"`
	Logging    Logging    `toml:"logging"`

	maxRawBytes uint64
}

// Load reads the configuration at path, or the first default location that
// exists when path is empty. Missing files are not an error: defaults apply
// and exists is false. The returned config is normalized and validated.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	resolved, exists, err = locate(path)
	if err != nil {
		return nil, "", false, err
	}

	c := Default()
	if exists {
		raw, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(raw, &c); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}
	if err := c.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}
	return &c, resolved, exists, nil
}

// SorterBinary returns the spike sorter executable name.
func (c *Config) SorterBinary() string {
	return c.Sorter.Command
}

// MaxRawBytes returns the parsed raw file size limit; zero means unlimited.
func (c *Config) MaxRawBytes() uint64 {
	return c.maxRawBytes
}
