package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"nwbconv/internal/behavior"
	"nwbconv/internal/ecephys"
	"nwbconv/internal/logging"
	"nwbconv/internal/metadata"
	"nwbconv/internal/nwb"
	"nwbconv/internal/processed"
	"nwbconv/internal/services"
	"nwbconv/internal/sources"
	"nwbconv/internal/spikeglx"
)

const defaultLabMetaDataName = "LabMetaData"

// assembler holds the state of one Run while the container is built.
type assembler struct {
	loader processed.Loader
	logger *slog.Logger
	set    sources.Set
	desc   *metadata.Descriptor
	opts   Options

	file      *nwb.File
	group     *nwb.ElectrodeGroup
	data      *processed.Data
	extractor *spikeglx.Extractor
}

func (a *assembler) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, logging.NewComponentLogger(a.logger, "pipeline"))
}

func (a *assembler) assemble(ctx context.Context) (*nwb.File, error) {
	session, err := sessionFromDescriptor(a.desc)
	if err != nil {
		return nil, err
	}
	if a.file, err = nwb.NewFile(session); err != nil {
		return nil, err
	}

	dev, err := a.desc.PrimaryDevice()
	if err != nil {
		return nil, err
	}
	grp, err := a.desc.PrimaryElectrodeGroup()
	if err != nil {
		return nil, err
	}
	if a.group, err = ecephys.SetupProbe(a.file, dev, grp); err != nil {
		return nil, err
	}

	if a.opts.IncludeProcessed {
		if err := a.addProcessed(services.WithStage(ctx, "processed")); err != nil {
			return nil, err
		}
	}
	if a.opts.IncludeRaw {
		if err := a.addRaw(services.WithStage(ctx, "raw")); err != nil {
			return nil, err
		}
	}

	subject, err := a.desc.RequireSubject()
	if err != nil {
		return nil, err
	}
	a.file.SetSubject(nwb.Subject(*subject))
	a.file.SetLabMetaData(a.labMetaData())
	return a.file, nil
}

func sessionFromDescriptor(desc *metadata.Descriptor) (nwb.Session, error) {
	start, err := desc.StartTime()
	if err != nil {
		return nwb.Session{}, err
	}
	f := desc.NWBFile
	return nwb.Session{
		Description:           f.SessionDescription,
		Identifier:            f.Identifier,
		StartTime:             start,
		SessionID:             f.SessionID,
		ExperimentDescription: f.ExperimentDescription,
		Experimenter:          f.Experimenter,
		Institution:           f.Institution,
		Lab:                   f.Lab,
		Keywords:              f.Keywords,
		RelatedPublications:   f.RelatedPublications,
		Notes:                 f.Notes,
	}, nil
}

func (a *assembler) addProcessed(ctx context.Context) error {
	path := a.set.Path(sources.Processed)
	data, err := a.loader.Load(path)
	if err != nil {
		return fmt.Errorf("load processed data: %w", err)
	}
	if err := data.Validate(); err != nil {
		return err
	}
	a.data = data
	logger := a.log(ctx)

	trials, err := behavior.DeriveTrials(data.Trial, data.PositionTime, data.TrialContrast)
	if err != nil {
		return fmt.Errorf("derive trials: %w", err)
	}
	for _, t := range trials {
		if err := a.file.AddTrial(t); err != nil {
			return err
		}
	}

	if len(data.PositionTime) > 0 {
		if err := a.addPosition(logger, data); err != nil {
			return err
		}
	}

	_, lickOpts := behavior.OptionsFromDescriptor(a.desc.Behavior)
	if len(data.LickPosition) > 0 || len(data.LickTime) > 0 {
		licks, err := behavior.BuildLickSeries(data.LickPosition, data.LickTime, lickOpts)
		if err != nil {
			return fmt.Errorf("build lick series: %w", err)
		}
		if err := a.file.AddBehavioralEvents(licks); err != nil {
			return err
		}
	}

	sp := data.Sorting
	electrodes, err := ecephys.BuildElectrodes(sp.XCoords, sp.YCoords, a.group, a.electrodeOptions())
	if err != nil {
		return err
	}
	for _, e := range electrodes {
		if err := a.file.AddElectrode(e); err != nil {
			return err
		}
	}

	units, err := ecephys.BuildUnits(sp, a.group)
	if err != nil {
		return err
	}
	for _, u := range units {
		if err := a.file.AddUnit(u); err != nil {
			return err
		}
	}

	if len(sp.SpikeTemplates) > 0 {
		templates, err := ecephys.BuildTemplateUnits(sp.SpikeTimes, sp.SpikeTemplates, sp.TemplateAmplitudes, a.group)
		if err != nil {
			return err
		}
		if err := a.file.ReplaceTemplateUnits(templates); err != nil {
			return err
		}
	}

	logger.Info("processed data assembled",
		logging.Int("trials", len(trials)),
		logging.Int("electrodes", len(electrodes)),
		logging.Int("units", len(units)),
		logging.Int("template_units", len(a.file.TemplateUnits)),
	)
	return nil
}

func (a *assembler) addPosition(logger *slog.Logger, data *processed.Data) error {
	uniformity, err := behavior.CheckUniform(data.PositionTime, a.opts.UniformTolerance)
	if err != nil {
		return fmt.Errorf("position sampling: %w", err)
	}
	if !uniformity.Uniform {
		logging.WarnWithContext(logger, "position sampling is not uniform", "nonuniform_sampling",
			logging.Float64("rate_hz", uniformity.Rate),
			logging.Float64("min_interval", uniformity.MinInterval),
			logging.Float64("max_interval", uniformity.MaxInterval),
			logging.Float64("deviation", uniformity.Deviation),
			logging.String(logging.FieldImpact, "position rate taken from the first sampling interval"),
		)
	}

	posOpts, _ := behavior.OptionsFromDescriptor(a.desc.Behavior)
	virtual, physical, err := behavior.BuildPositionSeries(data.PositionTime, data.Position, data.Trial, data.TrialGain, posOpts)
	if err != nil {
		return fmt.Errorf("build position series: %w", err)
	}
	if err := a.file.AddSpatialSeries(posOpts.Container, virtual); err != nil {
		return err
	}
	return a.file.AddSpatialSeries(posOpts.Container, physical)
}

// electrodeOptions resolves electrode location and filtering for probe rows
// and raw-channel placeholders alike.
func (a *assembler) electrodeOptions() ecephys.ElectrodeOptions {
	flag, _ := a.highPassFlag()
	return ecephys.ElectrodeOptions{
		Location:         a.desc.Ecephys.Electrodes.Location,
		HighPassFiltered: flag,
	}
}

// highPassFlag reports the filtering state and whether any source gave one.
func (a *assembler) highPassFlag() (bool, bool) {
	if flag := a.desc.Ecephys.Electrodes.HighPassFiltered; flag != nil {
		return *flag, true
	}
	if a.data != nil {
		return a.data.Sorting.HighPassFiltered, true
	}
	return false, false
}

func (a *assembler) addRaw(ctx context.Context) error {
	logger := a.log(ctx)
	ext, err := spikeglx.NewExtractor(a.file, a.set.Path(sources.SpikeGLX), spikeglx.Options{
		MaxRawBytes:     a.opts.MaxRawBytes,
		ConversionVolts: a.opts.ConversionVolts,
		Electrodes:      a.electrodeOptions(),
		Sorter:          a.opts.Sorter,
		Logger:          a.logger,
	})
	if err != nil {
		return err
	}
	a.extractor = ext

	series := a.desc.PrimaryElectricalSeries()
	if err := ext.AddAcquisition(series.Name, series.Description); err != nil {
		return fmt.Errorf("add acquisition: %w", err)
	}
	if !a.opts.RunSpikeSorting {
		return nil
	}

	units, err := ext.RunSpikeSorting(ctx)
	if err != nil {
		return err
	}
	if a.opts.IncludeProcessed {
		logger.Info("sorter output not imported; template units come from processed data",
			logging.Int("sorted_units", len(units)),
		)
		return nil
	}
	return a.file.ReplaceTemplateUnits(units)
}

// labMetaData fills the extension block from whichever sources were read.
// Fields no source provides stay unset.
func (a *assembler) labMetaData() nwb.LabMetaData {
	m := nwb.LabMetaData{Name: defaultLabMetaDataName}
	if lab := a.desc.LabMetaData; lab != nil {
		if strings.TrimSpace(lab.Name) != "" {
			m.Name = strings.TrimSpace(lab.Name)
		}
		m.BrainRegion = lab.BrainRegion
		m.MovieStartTime = lab.MovieStartTime
		m.Extra = extraFields(lab.Extra)
	}
	if flag, ok := a.highPassFlag(); ok {
		m.HighPassFiltered = &flag
	}
	if n := len(a.file.Electrodes); n > 0 {
		m.NumElectrodes = &n
	}

	if a.data != nil {
		sp := a.data.Sorting
		if sp.SampleRate > 0 {
			m.SamplingRate = &sp.SampleRate
		}
		if sp.DatPath != "" {
			m.RawFilePath = sp.DatPath
			offset := sp.Offset
			m.RawFileOffset = &offset
		}
		m.RawFileDtype = sp.Dtype
		if sp.NumChannels > 0 {
			n := sp.NumChannels
			m.NumElectrodes = &n
		}
	}
	if a.extractor != nil {
		if m.SamplingRate == nil {
			if rate := a.extractor.Meta().SampleRate; rate > 0 {
				m.SamplingRate = &rate
			}
		}
		if m.RawFilePath == "" {
			m.RawFilePath = a.set.Path(sources.SpikeGLX)
			m.RawFileDtype = "int16"
			var offset int64
			m.RawFileOffset = &offset
		}
	}
	return m
}

var reservedLabKeys = []string{
	"sampling_rate", "electrodes", "raw_file_path", "raw_file_offset",
	"raw_file_dtype", "high_pass_filtered", "movie_start_time", "brain_region",
}

func extraFields(extra map[string]any) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(extra))
	for key, value := range extra {
		key = strings.TrimSpace(key)
		if key == "" || strings.Contains(key, "/") || slices.Contains(reservedLabKeys, key) {
			continue
		}
		out[key] = fmt.Sprint(value)
	}
	return out
}
