package config

const (
	defaultLogDir           = "~/.local/share/nwbconv/logs"
	defaultHistoryDB        = "~/.local/share/nwbconv/history.db"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultSorterTimeout    = 6 * 3600
	defaultUniformTolerance = 0.01
	defaultMaxRawSize       = "64GB"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Conversion: Conversion{
			IncludeProcessed: true,
			Overwrite:        true,
			UniformTolerance: defaultUniformTolerance,
		},
		Sorter: Sorter{
			TimeoutSeconds: defaultSorterTimeout,
		},
		SpikeGLX: SpikeGLX{
			MaxRawSize: defaultMaxRawSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
