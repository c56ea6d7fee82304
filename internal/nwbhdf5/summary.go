package nwbhdf5

import (
	"fmt"
	"strings"

	"gonum.org/v1/hdf5"

	"nwbconv/internal/nwb"
)

// Summarize reads table sizes back from a written file.
func Summarize(path string) (nwb.Summary, error) {
	var s nwb.Summary
	h, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return s, fmt.Errorf("open %s: %w", path, err)
	}
	defer h.Close()
	if !h.LinkExists("identifier") {
		return s, fmt.Errorf("%s: %w", path, errNotNWB)
	}

	r := reader{file: h}
	s.Identifier = r.string("identifier")
	s.Electrodes = r.length("general/extracellular_ephys/electrodes/id")
	s.Units = r.length("units/id")
	s.TemplateUnits = r.length("processing/ecephys/TemplateUnits/id")
	s.Trials = r.length("intervals/trials/id")
	s.EventSeries = r.children("processing/behavior/BehavioralEvents")
	s.Acquisition = r.children("acquisition")
	s.HasSubject = r.exists("general/subject")
	s.HasLabMetaData = r.exists("general/lab_meta_data")

	// electrode groups share their parent with the electrodes table
	if n := r.children("general/extracellular_ephys"); n > 0 {
		s.ElectrodeGroups = n
		if r.exists("general/extracellular_ephys/electrodes") {
			s.ElectrodeGroups--
		}
	}
	if r.exists("processing/behavior") {
		behavior, err := h.OpenGroup("processing/behavior")
		if err == nil {
			s.SpatialSeries = r.spatialSeries(behavior)
			behavior.Close()
		}
	}
	return s, r.err
}

type reader struct {
	file *hdf5.File
	err  error
}

func (r *reader) exists(name string) bool {
	parts := strings.Split(name, "/")
	for i := range parts {
		if !r.file.LinkExists(strings.Join(parts[:i+1], "/")) {
			return false
		}
	}
	return true
}

func (r *reader) length(name string) int {
	if r.err != nil || !r.exists(name) {
		return 0
	}
	ds, err := r.file.OpenDataset(name)
	if err != nil {
		r.err = fmt.Errorf("open %s: %w", name, err)
		return 0
	}
	defer ds.Close()
	space := ds.Space()
	defer space.Close()
	return space.SimpleExtentNPoints()
}

func (r *reader) children(name string) int {
	if r.err != nil || !r.exists(name) {
		return 0
	}
	g, err := r.file.OpenGroup(name)
	if err != nil {
		r.err = fmt.Errorf("open %s: %w", name, err)
		return 0
	}
	defer g.Close()
	n, err := g.NumObjects()
	if err != nil {
		r.err = fmt.Errorf("count %s: %w", name, err)
		return 0
	}
	return int(n)
}

// spatialSeries counts the series held by Position containers, which are
// the groups under behavior other than BehavioralEvents.
func (r *reader) spatialSeries(behavior *hdf5.Group) int {
	n, err := behavior.NumObjects()
	if err != nil {
		return 0
	}
	total := 0
	for i := uint(0); i < n; i++ {
		name, err := behavior.ObjectNameByIndex(i)
		if err != nil || name == "BehavioralEvents" {
			continue
		}
		total += r.children("processing/behavior/" + name)
	}
	return total
}

func (r *reader) string(name string) string {
	if r.err != nil {
		return ""
	}
	ds, err := r.file.OpenDataset(name)
	if err != nil {
		r.err = fmt.Errorf("open %s: %w", name, err)
		return ""
	}
	defer ds.Close()
	dtype, err := ds.Datatype()
	if err != nil {
		r.err = fmt.Errorf("type of %s: %w", name, err)
		return ""
	}
	defer dtype.Close()
	buf := make([]byte, dtype.Size())
	if err := ds.Read(&buf); err != nil {
		r.err = fmt.Errorf("read %s: %w", name, err)
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}
