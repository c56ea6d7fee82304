package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateSorter(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateConversion() error {
	if c.Conversion.UniformTolerance < 0 || c.Conversion.UniformTolerance > 1 {
		return errors.New("conversion.uniform_tolerance must be between 0 and 1")
	}
	if c.Conversion.RunSpikeSorting && !c.Conversion.IncludeRaw {
		return errors.New("conversion.run_spike_sorting requires conversion.include_raw")
	}
	return nil
}

func (c *Config) validateSorter() error {
	if c.Sorter.TimeoutSeconds <= 0 {
		return errors.New("sorter.timeout_seconds must be positive")
	}
	if c.Conversion.RunSpikeSorting && strings.TrimSpace(c.Sorter.Command) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = userConfigPath
		}
		return fmt.Errorf("sorter.command is required when spike sorting is enabled. Set NWBCONV_SORTER or edit %s", defaultPath)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
