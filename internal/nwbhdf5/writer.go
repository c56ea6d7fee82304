package nwbhdf5

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/hdf5"

	"nwbconv/internal/nwb"
)

// Writer serializes containers to NWB 2.x HDF5 files. Output is staged in a
// temporary file beside the target and renamed into place, so the target is
// either fully written or untouched.
type Writer struct{}

// Write implements nwb.Writer.
func (Writer) Write(path string, f *nwb.File) error {
	if err := f.Validate(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := writeFile(tmpPath, f); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}

func writeFile(path string, f *nwb.File) (err error) {
	h, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("create hdf5 file: %w", err)
	}
	defer func() {
		if cerr := h.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close hdf5 file: %w", cerr)
		}
	}()
	root, err := h.OpenGroup("/")
	if err != nil {
		return fmt.Errorf("open root group: %w", err)
	}
	defer root.Close()

	w := &h5{}
	w.root(root, f)
	return w.err
}

func isoTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func (w *h5) root(root *hdf5.Group, f *nwb.File) {
	w.typed(root, nsCore, "NWBFile")
	w.attrString(root, "nwb_version", nwb.Version)
	w.attrString(root, "object_id", uuid.NewString())

	s := f.Session
	w.scalarString(root, "identifier", s.Identifier)
	w.scalarString(root, "session_description", s.Description)
	w.scalarString(root, "session_start_time", isoTime(s.StartTime))
	w.scalarString(root, "timestamps_reference_time", isoTime(s.StartTime))
	closeDataset(w.strings(root, "file_create_date", []string{isoTime(f.FileCreateDate)}, false))

	w.general(root, f)
	w.acquisition(root, f)
	w.processing(root, f)
	w.intervals(root, f)
	w.units(root, "units", f.Units)
}

func (w *h5) general(root *hdf5.Group, f *nwb.File) {
	general := w.group(root, "general", "", "")
	defer closeGroup(general)

	s := f.Session
	w.optionalString(general, "session_id", s.SessionID)
	w.optionalString(general, "experiment_description", s.ExperimentDescription)
	w.optionalString(general, "institution", s.Institution)
	w.optionalString(general, "lab", s.Lab)
	w.optionalString(general, "notes", s.Notes)
	for name, values := range map[string][]string{
		"experimenter":         s.Experimenter,
		"keywords":             s.Keywords,
		"related_publications": s.RelatedPublications,
	} {
		if len(values) > 0 {
			closeDataset(w.strings(general, name, values, false))
		}
	}

	devices := w.group(general, "devices", "", "")
	for _, d := range f.Devices {
		g := w.group(devices, d.Name, nsCore, "Device")
		if d.Description != "" {
			w.attrString(g, "description", d.Description)
		}
		if d.Manufacturer != "" {
			w.attrString(g, "manufacturer", d.Manufacturer)
		}
		closeGroup(g)
	}
	closeGroup(devices)

	ephys := w.group(general, "extracellular_ephys", "", "")
	for _, eg := range f.ElectrodeGroups {
		g := w.group(ephys, eg.Name, nsCore, "ElectrodeGroup")
		w.attrString(g, "description", eg.Description)
		w.attrString(g, "location", eg.Location)
		w.attrString(g, "device", "/general/devices/"+eg.Device.Name)
		closeGroup(g)
	}
	w.electrodes(ephys, f.Electrodes)
	closeGroup(ephys)

	if f.Subject != nil {
		w.subject(general, f.Subject)
	}
	if f.LabMetaData != nil {
		w.labMetaData(general, f.LabMetaData)
	}
}

func (w *h5) electrodes(parent *hdf5.Group, rows []nwb.Electrode) {
	table := w.table(parent, "electrodes", nsCommon, "DynamicTable", "metadata about extracellular electrodes", rowIDs(len(rows), func(i int) int { return rows[i].ID }))
	defer closeGroup(table)

	col := func(pick func(nwb.Electrode) float64) []float64 {
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = pick(r)
		}
		return out
	}
	str := func(pick func(nwb.Electrode) string) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = pick(r)
		}
		return out
	}
	w.floatColumn(table, "x", "x coordinate of the electrode", col(func(e nwb.Electrode) float64 { return e.X }))
	w.floatColumn(table, "y", "y coordinate of the electrode", col(func(e nwb.Electrode) float64 { return e.Y }))
	w.floatColumn(table, "z", "z coordinate of the electrode", col(func(e nwb.Electrode) float64 { return e.Z }))
	w.floatColumn(table, "imp", "impedance of the electrode", col(func(e nwb.Electrode) float64 { return e.Imp }))
	w.stringColumn(table, "location", "location of the electrode", str(func(e nwb.Electrode) string { return e.Location }))
	w.stringColumn(table, "filtering", "description of hardware filtering", str(func(e nwb.Electrode) string { return e.Filtering }))
	w.stringColumn(table, "group_name", "name of the electrode group", str(func(e nwb.Electrode) string { return e.Group.Name }))
	w.floatColumn(table, "rel_x", "x position on the probe", col(func(e nwb.Electrode) float64 { return e.RelX }))
	w.floatColumn(table, "rel_y", "y position on the probe", col(func(e nwb.Electrode) float64 { return e.RelY }))
	w.attrStrings(table, "colnames", []string{"x", "y", "z", "imp", "location", "filtering", "group_name", "rel_x", "rel_y"}, false)
}

func (w *h5) subject(parent *hdf5.Group, s *nwb.Subject) {
	g := w.group(parent, "subject", nsCore, "Subject")
	defer closeGroup(g)
	w.scalarString(g, "subject_id", s.SubjectID)
	w.scalarString(g, "species", s.Species)
	w.optionalString(g, "sex", s.Sex)
	w.optionalString(g, "age", s.Age)
	w.optionalString(g, "genotype", s.Genotype)
	w.optionalString(g, "strain", s.Strain)
	w.optionalString(g, "weight", s.Weight)
	w.optionalString(g, "date_of_birth", s.DateOfBirth)
	w.optionalString(g, "description", s.Description)
}

func (w *h5) labMetaData(parent *hdf5.Group, m *nwb.LabMetaData) {
	holder := w.group(parent, "lab_meta_data", "", "")
	defer closeGroup(holder)
	g := w.group(holder, m.Name, nsLabMeta, "LabMetaData_ext")
	defer closeGroup(g)

	if m.SamplingRate != nil {
		closeDataset(w.scalarFloat(g, "sampling_rate", *m.SamplingRate))
	}
	if m.NumElectrodes != nil {
		closeDataset(w.int64s(g, "electrodes", []int64{int64(*m.NumElectrodes)}))
	}
	w.optionalString(g, "raw_file_path", m.RawFilePath)
	if m.RawFileOffset != nil {
		closeDataset(w.int64s(g, "raw_file_offset", []int64{*m.RawFileOffset}))
	}
	w.optionalString(g, "raw_file_dtype", m.RawFileDtype)
	if m.HighPassFiltered != nil {
		w.scalarString(g, "high_pass_filtered", strconv.FormatBool(*m.HighPassFiltered))
	}
	if m.MovieStartTime != nil {
		closeDataset(w.scalarFloat(g, "movie_start_time", *m.MovieStartTime))
	}
	w.optionalString(g, "brain_region", m.BrainRegion)
	for key, value := range m.Extra {
		w.scalarString(g, key, value)
	}
}

func (w *h5) acquisition(root *hdf5.Group, f *nwb.File) {
	acq := w.group(root, "acquisition", "", "")
	defer closeGroup(acq)
	for _, es := range f.Acquisition {
		g := w.group(acq, es.Name, nsCore, "ElectricalSeries")
		w.attrString(g, "description", es.Description)
		data := w.dataset(g, "data", hdf5.T_NATIVE_INT16, []uint{uint(es.Samples()), uint(es.Channels)}, &es.Data, len(es.Data))
		w.attrFloat(data, "conversion", es.Conversion)
		w.attrFloat(data, "resolution", -1)
		w.attrString(data, "unit", "volts")
		closeDataset(data)
		w.startingTime(g, es.StartingTime, es.Rate)

		idx := make([]int64, len(es.Electrodes))
		for i, e := range es.Electrodes {
			idx[i] = int64(e)
		}
		region := w.int64s(g, "electrodes", idx)
		w.typed(region, nsCommon, "DynamicTableRegion")
		w.attrString(region, "description", "electrodes recorded by this series")
		w.attrString(region, "table", "/general/extracellular_ephys/electrodes")
		closeDataset(region)
		closeGroup(g)
	}
}

func (w *h5) startingTime(g *hdf5.Group, start, rate float64) {
	ds := w.scalarFloat(g, "starting_time", start)
	w.attrFloat(ds, "rate", rate)
	w.attrString(ds, "unit", "seconds")
	closeDataset(ds)
}

func (w *h5) processing(root *hdf5.Group, f *nwb.File) {
	proc := w.group(root, "processing", "", "")
	defer closeGroup(proc)

	if f.Position != nil || len(f.Events) > 0 {
		behavior := w.group(proc, "behavior", nsCore, "ProcessingModule")
		w.attrString(behavior, "description", "behavioral data")
		if f.Position != nil {
			pos := w.group(behavior, f.Position.Name, nsCore, "Position")
			for _, s := range f.Position.Series {
				w.spatialSeries(pos, s)
			}
			closeGroup(pos)
		}
		if len(f.Events) > 0 {
			events := w.group(behavior, "BehavioralEvents", nsCore, "BehavioralEvents")
			for _, s := range f.Events {
				w.eventSeries(events, s)
			}
			closeGroup(events)
		}
		closeGroup(behavior)
	}

	if len(f.TemplateUnits) > 0 {
		ecephys := w.group(proc, "ecephys", nsCore, "ProcessingModule")
		w.attrString(ecephys, "description", "template matching output")
		w.templateUnits(ecephys, f.TemplateUnits)
		closeGroup(ecephys)
	}
}

func (w *h5) spatialSeries(parent *hdf5.Group, s nwb.SpatialSeries) {
	g := w.group(parent, s.Name, nsCore, "SpatialSeries")
	defer closeGroup(g)
	w.attrString(g, "description", s.Description)
	data := w.floats(g, "data", s.Data)
	w.attrFloat(data, "conversion", s.Conversion)
	w.attrFloat(data, "resolution", -1)
	w.attrString(data, "unit", s.Unit)
	closeDataset(data)
	w.scalarString(g, "reference_frame", s.ReferenceFrame)
	w.startingTime(g, s.StartingTime, s.Rate)
}

func (w *h5) eventSeries(parent *hdf5.Group, s nwb.EventSeries) {
	g := w.group(parent, s.Name, nsCore, "TimeSeries")
	defer closeGroup(g)
	w.attrString(g, "description", s.Description)
	data := w.floats(g, "data", s.Data)
	w.attrFloat(data, "conversion", 1)
	w.attrFloat(data, "resolution", -1)
	w.attrString(data, "unit", s.Unit)
	closeDataset(data)
	ts := w.floats(g, "timestamps", s.Timestamps)
	w.attrString(ts, "unit", "seconds")
	closeDataset(ts)
}

func (w *h5) intervals(root *hdf5.Group, f *nwb.File) {
	if len(f.Trials) == 0 {
		return
	}
	intervals := w.group(root, "intervals", "", "")
	defer closeGroup(intervals)
	table := w.table(intervals, "trials", nsCore, "TimeIntervals", "experimental trials", rowIDs(len(f.Trials), func(i int) int { return i }))
	defer closeGroup(table)

	start := make([]float64, len(f.Trials))
	stop := make([]float64, len(f.Trials))
	contrast := make([]float64, len(f.Trials))
	for i, t := range f.Trials {
		start[i], stop[i], contrast[i] = t.StartTime, t.StopTime, t.Contrast
	}
	w.floatColumn(table, "start_time", "start time of the trial", start)
	w.floatColumn(table, "stop_time", "stop time of the trial", stop)
	w.floatColumn(table, "contrast", "visual contrast of the trial", contrast)
	w.attrStrings(table, "colnames", []string{"start_time", "stop_time", "contrast"}, false)
}

func (w *h5) units(parent *hdf5.Group, name string, units []nwb.Unit) {
	if len(units) == 0 {
		return
	}
	table := w.table(parent, name, nsCore, "Units", "curated units", rowIDs(len(units), func(i int) int { return units[i].ID }))
	defer closeGroup(table)

	spikes := make([][]float64, len(units))
	quality := make([]string, len(units))
	groups := make([]string, len(units))
	for i, u := range units {
		spikes[i] = u.SpikeTimes
		quality[i] = u.Quality
		groups[i] = u.Group.Name
	}
	w.raggedColumn(table, "spike_times", "spike times of each unit in seconds", spikes)
	w.stringColumn(table, "quality", "phy cluster label", quality)
	w.stringColumn(table, "electrode_group", "electrode group of each unit", groups)
	colnames := []string{"spike_times", "quality", "electrode_group"}

	if mean, dims, ok := stackWaveforms(units); ok {
		ds := w.dataset(table, "waveform_mean", hdf5.T_NATIVE_DOUBLE, dims, &mean, len(mean))
		w.typed(ds, nsCommon, "VectorData")
		w.attrString(ds, "description", "mean waveform of each unit, samples x channels")
		closeDataset(ds)
		colnames = append(colnames, "waveform_mean")
	}
	w.attrStrings(table, "colnames", colnames, false)
}

// stackWaveforms flattens equally shaped mean waveforms into one
// units x samples x channels block.
func stackWaveforms(units []nwb.Unit) ([]float64, []uint, bool) {
	first := units[0].WaveformMean
	if len(first) == 0 || len(first[0]) == 0 {
		return nil, nil, false
	}
	samples, channels := len(first), len(first[0])
	out := make([]float64, 0, len(units)*samples*channels)
	for _, u := range units {
		if len(u.WaveformMean) != samples {
			return nil, nil, false
		}
		for _, row := range u.WaveformMean {
			if len(row) != channels {
				return nil, nil, false
			}
			out = append(out, row...)
		}
	}
	return out, []uint{uint(len(units)), uint(samples), uint(channels)}, true
}

func (w *h5) templateUnits(parent *hdf5.Group, units []nwb.TemplateUnit) {
	table := w.table(parent, "TemplateUnits", nsCore, "Units", "units from template matching", rowIDs(len(units), func(i int) int { return units[i].ID }))
	defer closeGroup(table)

	spikes := make([][]float64, len(units))
	amps := make([][]float64, len(units))
	groups := make([]string, len(units))
	for i, u := range units {
		spikes[i] = u.SpikeTimes
		amps[i] = u.Amplitudes
		groups[i] = u.Group.Name
	}
	w.raggedColumn(table, "spike_times", "spike times of each template in seconds", spikes)
	w.raggedColumn(table, "amplitudes", "per-spike template scaling amplitude", amps)
	w.stringColumn(table, "electrode_group", "electrode group of each template", groups)
	w.attrStrings(table, "colnames", []string{"spike_times", "amplitudes", "electrode_group"}, false)
}

func rowIDs(n int, id func(int) int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(id(i))
	}
	return ids
}

// table creates a DynamicTable-derived group of the given type with its id
// column. Each group carries exactly one namespace/neurodata_type pair.
func (w *h5) table(parent *hdf5.Group, name, namespace, dataType, description string, ids []int64) *hdf5.Group {
	g := w.group(parent, name, namespace, dataType)
	w.attrString(g, "description", description)
	id := w.int64s(g, "id", ids)
	w.typed(id, nsCommon, "ElementIdentifiers")
	closeDataset(id)
	return g
}

func (w *h5) floatColumn(table *hdf5.Group, name, description string, values []float64) {
	ds := w.floats(table, name, values)
	w.typed(ds, nsCommon, "VectorData")
	w.attrString(ds, "description", description)
	closeDataset(ds)
}

func (w *h5) stringColumn(table *hdf5.Group, name, description string, values []string) {
	ds := w.strings(table, name, values, false)
	w.typed(ds, nsCommon, "VectorData")
	w.attrString(ds, "description", description)
	closeDataset(ds)
}

func (w *h5) raggedColumn(table *hdf5.Group, name, description string, rows [][]float64) {
	data, index := nwb.Flatten(rows)
	w.floatColumn(table, name, description, data)
	ds := w.int64s(table, name+"_index", index)
	w.typed(ds, nsCommon, "VectorIndex")
	w.attrString(ds, "description", "index into "+name)
	w.attrString(ds, "target", name)
	closeDataset(ds)
}

var errNotNWB = errors.New("not an NWB file")
