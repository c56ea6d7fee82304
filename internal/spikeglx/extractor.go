package spikeglx

import (
	"context"
	"log/slog"
	"math"

	"nwbconv/internal/ecephys"
	"nwbconv/internal/logging"
	"nwbconv/internal/nwb"
	"nwbconv/internal/services"
)

// Options configures an Extractor.
type Options struct {
	// MaxRawBytes caps the .bin size that will be loaded; zero is unlimited.
	MaxRawBytes uint64
	// ConversionVolts overrides Meta.Conversion when positive.
	ConversionVolts float64
	// Electrodes describes placeholder rows added for channels without a
	// probe electrode, in the same terms as the probe rows.
	Electrodes ecephys.ElectrodeOptions
	Sorter     Sorter
	Logger     *slog.Logger
}

// Extractor attaches one SpikeGLX recording to an output container.
type Extractor struct {
	file    *nwb.File
	meta    *Meta
	binPath string
	opts    Options
	logger  *slog.Logger
}

// NewExtractor parses the sidecar of binPath and binds it to file.
func NewExtractor(file *nwb.File, binPath string, opts Options) (*Extractor, error) {
	meta, err := ParseMeta(MetaPath(binPath))
	if err != nil {
		return nil, err
	}
	return &Extractor{
		file:    file,
		meta:    meta,
		binPath: binPath,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "spikeglx"),
	}, nil
}

// Meta returns the parsed sidecar.
func (e *Extractor) Meta() *Meta {
	return e.meta
}

// AddAcquisition loads the raw trace and attaches it as an ElectricalSeries
// linked to the first SavedChannels electrodes. Channels without a probe
// electrode row, such as the sync channel, get placeholder rows.
func (e *Extractor) AddAcquisition(name, description string) error {
	if len(e.file.ElectrodeGroups) == 0 {
		return services.Wrap(services.ErrValidation, "spikeglx", "add acquisition", "no electrode group to attach channels to", nil)
	}
	channels := e.meta.SavedChannels
	data, err := ReadBinary(e.binPath, channels, e.opts.MaxRawBytes)
	if err != nil {
		return err
	}

	if err := e.padElectrodes(channels); err != nil {
		return err
	}
	indices := make([]int, channels)
	for i := range indices {
		indices[i] = i
	}

	conversion := e.meta.Conversion()
	if e.opts.ConversionVolts > 0 {
		conversion = e.opts.ConversionVolts
	}
	series := &nwb.ElectricalSeries{
		Name:        name,
		Description: description,
		Data:        data,
		Channels:    channels,
		Rate:        e.meta.SampleRate,
		Conversion:  conversion,
		Electrodes:  indices,
	}
	if err := e.file.AddAcquisition(series); err != nil {
		return err
	}
	e.logger.Info("raw acquisition attached",
		logging.String("series", name),
		logging.Int("channels", channels),
		logging.Int("samples", series.Samples()),
		logging.Float64("rate_hz", e.meta.SampleRate),
	)
	return nil
}

// padElectrodes adds rows with unknown coordinates until there is one per
// saved channel. Location and filtering follow Options.Electrodes.
func (e *Extractor) padElectrodes(channels int) error {
	first := len(e.file.Electrodes)
	missing := channels - first
	if missing <= 0 {
		return nil
	}
	coords := make([]float64, missing)
	for i := range coords {
		coords[i] = math.NaN()
	}
	rows, err := ecephys.BuildElectrodes(coords, coords, e.file.ElectrodeGroups[0], e.opts.Electrodes)
	if err != nil {
		return err
	}
	for _, row := range rows {
		row.ID += first
		if err := e.file.AddElectrode(row); err != nil {
			return err
		}
	}
	return nil
}

// RunSpikeSorting runs the configured sorter on the raw file and returns its
// output as template units linked to the first electrode group.
func (e *Extractor) RunSpikeSorting(ctx context.Context) ([]nwb.TemplateUnit, error) {
	if len(e.file.ElectrodeGroups) == 0 {
		return nil, services.Wrap(services.ErrValidation, "spikeglx", "spike sorting", "no electrode group for sorted units", nil)
	}
	sorter := e.opts.Sorter
	if sorter.Logger == nil {
		sorter.Logger = e.opts.Logger
	}
	result, err := sorter.Run(ctx, e.binPath, e.meta.SampleRate)
	if err != nil {
		return nil, err
	}
	units, err := ecephys.BuildTemplateUnits(result.SpikeTimes, result.SpikeTemplates, result.Amplitudes, e.file.ElectrodeGroups[0])
	if err != nil {
		return nil, err
	}
	e.logger.Info("sorter output imported",
		logging.String("output_dir", result.OutputDir),
		logging.Int("spikes", len(result.SpikeTimes)),
		logging.Int("template_units", len(units)),
	)
	return units, nil
}

// Save serializes the container with w.
func (e *Extractor) Save(path string, w nwb.Writer) error {
	return w.Write(path, e.file)
}
