package pipeline

import (
	"time"

	"nwbconv/internal/config"
	"nwbconv/internal/spikeglx"
)

// Options selects which parts of a session are converted.
type Options struct {
	IncludeProcessed bool
	IncludeRaw       bool
	RunSpikeSorting  bool
	Overwrite        bool

	// UniformTolerance bounds the relative spread of position sampling
	// intervals before a warning is logged.
	UniformTolerance float64
	MaxRawBytes      uint64
	ConversionVolts  float64
	Sorter           spikeglx.Sorter
}

// OptionsFromConfig seeds Options from the tool configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IncludeProcessed: cfg.Conversion.IncludeProcessed,
		IncludeRaw:       cfg.Conversion.IncludeRaw,
		RunSpikeSorting:  cfg.Conversion.RunSpikeSorting,
		Overwrite:        cfg.Conversion.Overwrite,
		UniformTolerance: cfg.Conversion.UniformTolerance,
		MaxRawBytes:      cfg.MaxRawBytes(),
		ConversionVolts:  cfg.SpikeGLX.ConversionVolts,
		Sorter: spikeglx.Sorter{
			Command:   cfg.SorterBinary(),
			Args:      cfg.Sorter.Args,
			OutputDir: cfg.Sorter.OutputDir,
			Timeout:   time.Duration(cfg.Sorter.TimeoutSeconds) * time.Second,
		},
	}
}
