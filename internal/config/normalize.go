package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSorter(); err != nil {
		return err
	}
	if err := c.normalizeSpikeGLX(); err != nil {
		return err
	}
	if c.Conversion.UniformTolerance <= 0 {
		c.Conversion.UniformTolerance = defaultUniformTolerance
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = ExpandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeSorter() error {
	c.Sorter.Command = strings.TrimSpace(c.Sorter.Command)
	if c.Sorter.Command == "" {
		if value, ok := os.LookupEnv("NWBCONV_SORTER"); ok {
			c.Sorter.Command = strings.TrimSpace(value)
		}
	}
	args := make([]string, 0, len(c.Sorter.Args))
	for _, arg := range c.Sorter.Args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Sorter.Args = args
	if strings.TrimSpace(c.Sorter.OutputDir) != "" {
		var err error
		if c.Sorter.OutputDir, err = ExpandPath(c.Sorter.OutputDir); err != nil {
			return fmt.Errorf("sorter.output_dir: %w", err)
		}
	}
	if c.Sorter.TimeoutSeconds <= 0 {
		c.Sorter.TimeoutSeconds = defaultSorterTimeout
	}
	return nil
}

func (c *Config) normalizeSpikeGLX() error {
	c.SpikeGLX.MaxRawSize = strings.TrimSpace(c.SpikeGLX.MaxRawSize)
	size, err := parseSize(c.SpikeGLX.MaxRawSize)
	if err != nil {
		return fmt.Errorf("spikeglx.max_raw_size: %w", err)
	}
	c.maxRawBytes = size
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
