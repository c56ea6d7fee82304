package nwbhdf5

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/hdf5"

	"nwbconv/internal/nwb"
)

func buildFile(t *testing.T) *nwb.File {
	t.Helper()
	f, err := nwb.NewFile(nwb.Session{
		Description:  "virtual reality session",
		Identifier:   "npI5_0417_baseline_1",
		StartTime:    time.Date(2019, 4, 17, 10, 0, 0, 0, time.UTC),
		Experimenter: []string{"Malcolm Campbell"},
	})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	dev, _ := f.CreateDevice(nwb.Device{Name: "Neuropixels"})
	group, err := f.CreateElectrodeGroup(nwb.ElectrodeGroup{Name: "shank0", Location: "MEC", Device: dev})
	if err != nil {
		t.Fatalf("CreateElectrodeGroup: %v", err)
	}
	nan := math.NaN()
	for i := 0; i < 3; i++ {
		if err := f.AddElectrode(nwb.Electrode{ID: i, X: nan, Y: nan, Z: nan, Imp: nan, Location: "MEC", Filtering: "none", Group: group, RelX: float64(i), RelY: 20}); err != nil {
			t.Fatalf("AddElectrode: %v", err)
		}
	}
	_ = f.AddUnit(nwb.Unit{ID: 4, SpikeTimes: []float64{0.1, 0.2}, Quality: "good", Group: group, WaveformMean: [][]float64{{1, 2, 3}}})
	_ = f.AddUnit(nwb.Unit{ID: 9, SpikeTimes: []float64{0.3}, Quality: "noise", Group: group, WaveformMean: [][]float64{{4, 5, 6}}})
	_ = f.AddTemplateUnit(nwb.TemplateUnit{ID: 0, SpikeTimes: []float64{0.1}, Amplitudes: []float64{12}, Group: group})
	_ = f.AddTrial(nwb.Trial{StartTime: 0, StopTime: 0.1, Contrast: 0.5})
	_ = f.AddTrial(nwb.Trial{StartTime: 0.2, StopTime: 0.4, Contrast: 0.8})
	_ = f.AddSpatialSeries("Position", nwb.SpatialSeries{Name: "VirtualPosition", Rate: 10, Unit: "cm", Conversion: 1, Data: []float64{1, 2}})
	_ = f.AddSpatialSeries("Position", nwb.SpatialSeries{Name: "PhysicalPosition", Rate: 10, Unit: "cm", Conversion: 1, Data: []float64{1, 4}})
	_ = f.AddBehavioralEvents(nwb.EventSeries{Name: "Licks", Unit: "cm", Data: []float64{3}, Timestamps: []float64{0.15}})
	if err := f.AddAcquisition(&nwb.ElectricalSeries{Name: "ElectricalSeries", Data: []int16{1, 2, 3, 4, 5, 6}, Channels: 3, Rate: 30000, Conversion: 1e-6, Electrodes: []int{0, 1, 2}}); err != nil {
		t.Fatalf("AddAcquisition: %v", err)
	}
	f.SetSubject(nwb.Subject{SubjectID: "npI5", Species: "Mus musculus"})
	movie, rate, channels := 12.5, 30000.0, 3
	f.SetLabMetaData(nwb.LabMetaData{Name: "LabMetaData", SamplingRate: &rate, NumElectrodes: &channels, MovieStartTime: &movie})
	return f
}

func TestWriteAndSummarize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")
	f := buildFile(t)
	if err := (Writer{}).Write(path, f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Summarize(path)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if diff := cmp.Diff(f.Summarize(), got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestWriteOverwritesExistingOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := (Writer{}).Write(path, buildFile(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := Summarize(path); err != nil {
		t.Fatalf("Summarize after overwrite: %v", err)
	}
}

func TestWriteRejectsForeignReferenceWithoutOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")
	f := buildFile(t)
	f.Units[0].Group = &nwb.ElectrodeGroup{Name: "stray"}
	if err := (Writer{}).Write(path, f); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err = %v", err)
	}
}

func TestSummarizeRejectsNonNWB(t *testing.T) {
	if _, err := Summarize(filepath.Join(t.TempDir(), "missing.nwb")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func groupAttr(t *testing.T, f *hdf5.File, path, name string) string {
	t.Helper()
	g, err := f.OpenGroup(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer g.Close()
	attr, err := g.OpenAttribute(name)
	if err != nil {
		t.Fatalf("open attribute %s on %s: %v", name, path, err)
	}
	defer attr.Close()
	// String reads use the attribute's own fixed-length type.
	var value string
	if err := attr.Read(&value, hdf5.T_C_S1); err != nil {
		t.Fatalf("read attribute %s on %s: %v", name, path, err)
	}
	return value
}

func TestWriteTagsTablesWithOneNeurodataType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")
	if err := (Writer{}).Write(path, buildFile(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	cases := []struct {
		path, namespace, dataType string
	}{
		{"units", "core", "Units"},
		{"intervals/trials", "core", "TimeIntervals"},
		{"processing/ecephys/TemplateUnits", "core", "Units"},
		{"general/extracellular_ephys/electrodes", "hdmf-common", "DynamicTable"},
	}
	for _, tc := range cases {
		if got := groupAttr(t, f, tc.path, "neurodata_type"); got != tc.dataType {
			t.Fatalf("%s neurodata_type = %q, want %q", tc.path, got, tc.dataType)
		}
		if got := groupAttr(t, f, tc.path, "namespace"); got != tc.namespace {
			t.Fatalf("%s namespace = %q, want %q", tc.path, got, tc.namespace)
		}
	}
}

func TestWriteLabMetaDataSkipsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")
	nf := buildFile(t)
	nf.SetLabMetaData(nwb.LabMetaData{Name: "LabMetaData", BrainRegion: "MEC"})
	if err := (Writer{}).Write(path, nf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	g, err := f.OpenGroup("general/lab_meta_data/LabMetaData")
	if err != nil {
		t.Fatalf("open lab block: %v", err)
	}
	defer g.Close()
	if !g.LinkExists("brain_region") {
		t.Fatal("brain_region missing")
	}
	for _, name := range []string{"sampling_rate", "electrodes", "raw_file_path", "raw_file_offset", "raw_file_dtype", "high_pass_filtered", "movie_start_time"} {
		if g.LinkExists(name) {
			t.Fatalf("unset field %s was written", name)
		}
	}
}

func TestWriteOmitsEmptyLabMetaData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.nwb")
	nf := buildFile(t)
	nf.SetLabMetaData(nwb.LabMetaData{Name: "LabMetaData"})
	if err := (Writer{}).Write(path, nf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Summarize(path)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got.HasLabMetaData {
		t.Fatal("empty lab metadata block was written")
	}
}
