package nwb

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestFile(t *testing.T) *File {
	t.Helper()
	f, err := NewFile(Session{
		Description: "virtual reality session",
		Identifier:  "npI5_0417_baseline_1",
		StartTime:   time.Date(2019, 4, 17, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return f
}

func TestNewFileRequiresIdentifier(t *testing.T) {
	_, err := NewFile(Session{Description: "x", StartTime: time.Now()})
	if err == nil {
		t.Fatal("expected error for missing identifier")
	}
}

func TestElectrodeGroupRequiresOwnedDevice(t *testing.T) {
	f := newTestFile(t)
	stray := &Device{Name: "probe"}
	_, err := f.CreateElectrodeGroup(ElectrodeGroup{Name: "shank", Device: stray})
	if !errors.Is(err, ErrForeignReference) {
		t.Fatalf("expected ErrForeignReference, got %v", err)
	}
}

func TestAddElectrodeRejectsForeignGroup(t *testing.T) {
	f := newTestFile(t)
	dev, err := f.CreateDevice(Device{Name: "probe"})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if _, err := f.CreateElectrodeGroup(ElectrodeGroup{Name: "shank", Device: dev}); err != nil {
		t.Fatalf("CreateElectrodeGroup: %v", err)
	}
	copyGroup := *f.ElectrodeGroups[0]
	err = f.AddElectrode(Electrode{ID: 0, Group: &copyGroup, X: math.NaN()})
	if !errors.Is(err, ErrForeignReference) {
		t.Fatalf("expected ErrForeignReference for copied group, got %v", err)
	}
	if err := f.AddElectrode(Electrode{ID: 0, Group: f.ElectrodeGroups[0]}); err != nil {
		t.Fatalf("AddElectrode: %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDuplicateUnitID(t *testing.T) {
	f := newTestFile(t)
	dev, _ := f.CreateDevice(Device{Name: "probe"})
	group, _ := f.CreateElectrodeGroup(ElectrodeGroup{Name: "shank", Device: dev})
	if err := f.AddUnit(Unit{ID: 3, Group: group}); err != nil {
		t.Fatalf("AddUnit: %v", err)
	}
	if err := f.AddUnit(Unit{ID: 3, Group: group}); err == nil {
		t.Fatal("expected duplicate unit error")
	}
}

func TestTemplateUnitAmplitudesMatchSpikes(t *testing.T) {
	f := newTestFile(t)
	dev, _ := f.CreateDevice(Device{Name: "probe"})
	group, _ := f.CreateElectrodeGroup(ElectrodeGroup{Name: "shank", Device: dev})
	err := f.AddTemplateUnit(TemplateUnit{ID: 0, Group: group, SpikeTimes: []float64{0.1, 0.2}, Amplitudes: []float64{1}})
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestAddTrialRejectsInvertedInterval(t *testing.T) {
	f := newTestFile(t)
	if err := f.AddTrial(Trial{StartTime: 2, StopTime: 1}); err == nil {
		t.Fatal("expected error")
	}
	if err := f.AddTrial(Trial{StartTime: 0.2, StopTime: 0.2, Contrast: 0.8}); err != nil {
		t.Fatalf("zero-length trial rejected: %v", err)
	}
}

func TestAddAcquisitionChecksElectrodeIndices(t *testing.T) {
	f := newTestFile(t)
	dev, _ := f.CreateDevice(Device{Name: "probe"})
	group, _ := f.CreateElectrodeGroup(ElectrodeGroup{Name: "shank", Device: dev})
	_ = f.AddElectrode(Electrode{ID: 0, Group: group})
	_ = f.AddElectrode(Electrode{ID: 1, Group: group})

	bad := &ElectricalSeries{Name: "ElectricalSeries", Data: make([]int16, 6), Channels: 2, Rate: 30000, Electrodes: []int{0, 2}}
	if err := f.AddAcquisition(bad); err == nil {
		t.Fatal("expected out of range error")
	}
	good := &ElectricalSeries{Name: "ElectricalSeries", Data: make([]int16, 6), Channels: 2, Rate: 30000, Electrodes: []int{0, 1}}
	if err := f.AddAcquisition(good); err != nil {
		t.Fatalf("AddAcquisition: %v", err)
	}
	if got := good.Samples(); got != 3 {
		t.Fatalf("Samples = %d, want 3", got)
	}
}

func TestSummarize(t *testing.T) {
	f := newTestFile(t)
	_ = f.AddTrial(Trial{StartTime: 0, StopTime: 0.1})
	if err := f.AddSpatialSeries("Position", SpatialSeries{Name: "VirtualPosition", Rate: 10}); err != nil {
		t.Fatalf("AddSpatialSeries: %v", err)
	}
	if err := f.AddSpatialSeries("Position", SpatialSeries{Name: "PhysicalPosition", Rate: 10}); err != nil {
		t.Fatalf("AddSpatialSeries: %v", err)
	}
	f.SetSubject(Subject{SubjectID: "npI5", Species: "Mus musculus"})
	got := f.Summarize()
	want := Summary{Identifier: "npI5_0417_baseline_1", Trials: 1, SpatialSeries: 2, HasSubject: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	rows := [][]float64{{1, 2}, {}, {3}}
	data, index := Flatten(rows)
	if diff := cmp.Diff([]int64{2, 2, 3}, index); diff != "" {
		t.Fatalf("index mismatch:\n%s", diff)
	}
	back := Unflatten(data, index)
	if diff := cmp.Diff(rows, back, cmp.Comparer(func(a, b []float64) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	})); diff != "" {
		t.Fatalf("round trip mismatch:\n%s", diff)
	}
}
