package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"nwbconv/internal/ecephys"
	"nwbconv/internal/metadata"
	"nwbconv/internal/nwb"
	"nwbconv/internal/processed"
	"nwbconv/internal/services"
	"nwbconv/internal/sources"
	"nwbconv/internal/spikeglx"
	"nwbconv/internal/testsupport"
)

type fakeLoader struct {
	data  *processed.Data
	err   error
	calls int
}

func (l *fakeLoader) Load(string) (*processed.Data, error) {
	l.calls++
	return l.data, l.err
}

type fakeWriter struct {
	file  *nwb.File
	err   error
	calls int
}

func (w *fakeWriter) Write(path string, f *nwb.File) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.file = f
	return os.WriteFile(path, []byte("nwb-bytes"), 0o644)
}

func sessionData() *processed.Data {
	return &processed.Data{
		PositionTime:  []float64{0, 0.1, 0.2, 0.3, 0.4},
		Position:      []float64{10, 20, 30, 40, 50},
		Trial:         []int{1, 1, 2, 2, 2},
		TrialContrast: []float64{0.5, 0.8},
		TrialGain:     []float64{1, 0.5},
		LickPosition:  []float64{25},
		LickTime:      []float64{0.15},
		Sorting: processed.Sorting{
			SpikeTimes:         []float64{0.01, 0.02, 0.03, 0.04},
			Clusters:           []int64{5, 5, 8, 11},
			ClusterIDs:         []int64{5, 8, 11},
			ClusterGroups:      []int64{2, 1, 0},
			SpikeTemplates:     []int64{0, 0, 1, 1},
			TemplateAmplitudes: []float64{1, 2, 3, 4},
			XCoords:            []float64{43, 11, 59, 27},
			YCoords:            []float64{20, 20, 40, 40},
			Templates:          [][][]float64{{{1, 1, 1, 1}}, {{2, 2, 2, 2}}},
			SampleRate:         30000,
			NumChannels:        385,
			DatPath:            "npI5_0417_g0_t0.imec0.ap.bin",
			Dtype:              "int16",
			HighPassFiltered:   true,
		},
	}
}

func loadDescriptor(t *testing.T, body string) *metadata.Descriptor {
	t.Helper()
	desc, err := metadata.Decode(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return desc
}

func processedOnly() Options {
	return Options{IncludeProcessed: true, Overwrite: true, UniformTolerance: 0.01}
}

func TestRunProcessedSession(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "session.nwb")
	loader := &fakeLoader{data: sessionData()}
	writer := &fakeWriter{}
	conv := New(loader, writer, nil)

	set := sources.New(map[string]string{sources.Processed: filepath.Join(dir, "session.mat")})
	res, err := conv.Run(context.Background(), set, loadDescriptor(t, testsupport.SessionDescriptor), output, processedOnly())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if writer.calls != 1 {
		t.Fatalf("writer called %d times, want exactly once", writer.calls)
	}
	if res.Path != output || res.SizeBytes != int64(len("nwb-bytes")) {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.SizeMB != float64(res.SizeBytes)/1e6 {
		t.Fatalf("SizeMB = %v", res.SizeMB)
	}

	f := writer.file
	if got := len(f.Units); got != 3 {
		t.Fatalf("units = %d, want one per curated cluster", got)
	}
	if got := len(f.Trials); got != 2 {
		t.Fatalf("trials = %d, want 2", got)
	}
	if got := len(f.Electrodes); got != 4 {
		t.Fatalf("electrodes = %d, want len(xcoords)", got)
	}
	if got := len(f.TemplateUnits); got != 2 {
		t.Fatalf("template units = %d, want 2", got)
	}
	if f.Position == nil || len(f.Position.Series) != 2 {
		t.Fatalf("expected virtual and physical position series, got %+v", f.Position)
	}
	if len(f.Events) != 1 || f.Events[0].Name != "Licks" {
		t.Fatalf("unexpected events %+v", f.Events)
	}
	if f.Subject == nil || f.Subject.SubjectID != "npI5" {
		t.Fatalf("unexpected subject %+v", f.Subject)
	}
	lab := f.LabMetaData
	if lab == nil || lab.SamplingRate == nil || *lab.SamplingRate != 30000 ||
		lab.NumElectrodes == nil || *lab.NumElectrodes != 385 ||
		lab.HighPassFiltered == nil || !*lab.HighPassFiltered {
		t.Fatalf("unexpected lab metadata %+v", lab)
	}
	if lab.MovieStartTime == nil || *lab.MovieStartTime != 12.5 || lab.BrainRegion != "medial entorhinal cortex" {
		t.Fatalf("descriptor lab fields not carried: %+v", lab)
	}
	if _, err := os.Stat(output + ".lock"); !os.IsNotExist(err) {
		t.Fatalf("lock file left behind: %v", err)
	}
}

func TestRunMissingSubjectWritesNothing(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "session.nwb")
	loader := &fakeLoader{data: sessionData()}
	writer := &fakeWriter{}
	body := strings.Replace(testsupport.SessionDescriptor, "  subject_id: npI5\n", "", 1)

	set := sources.New(map[string]string{sources.Processed: "session.mat"})
	_, err := New(loader, writer, nil).Run(context.Background(), set, loadDescriptor(t, body), output, processedOnly())

	var missing *metadata.MissingKeyError
	if !errors.As(err, &missing) || missing.Key != "Subject.subject_id" {
		t.Fatalf("expected MissingKeyError for Subject.subject_id, got %v", err)
	}
	if loader.calls != 0 || writer.calls != 0 {
		t.Fatalf("sources touched before descriptor check: loader=%d writer=%d", loader.calls, writer.calls)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err = %v", err)
	}
}

func TestRunShortContrastIsDataShapeError(t *testing.T) {
	dir := t.TempDir()
	data := sessionData()
	data.TrialContrast = data.TrialContrast[:1]
	writer := &fakeWriter{}
	set := sources.New(map[string]string{sources.Processed: "session.mat"})

	_, err := New(&fakeLoader{data: data}, writer, nil).Run(context.Background(), set,
		loadDescriptor(t, testsupport.SessionDescriptor), filepath.Join(dir, "out.nwb"), processedOnly())
	if !errors.Is(err, services.ErrDataShape) {
		t.Fatalf("expected ErrDataShape, got %v", err)
	}
	if writer.calls != 0 {
		t.Fatal("writer must not run after an assembly error")
	}
}

func TestRunRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "session.nwb")
	if err := os.WriteFile(output, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	opts := processedOnly()
	opts.Overwrite = false
	set := sources.New(map[string]string{sources.Processed: "session.mat"})

	_, err := New(&fakeLoader{data: sessionData()}, &fakeWriter{}, nil).Run(context.Background(), set,
		loadDescriptor(t, testsupport.SessionDescriptor), output, opts)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRunRejectsLockedOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "session.nwb")
	held := flock.New(output + ".lock")
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer held.Unlock()

	set := sources.New(map[string]string{sources.Processed: "session.mat"})
	_, err := New(&fakeLoader{data: sessionData()}, &fakeWriter{}, nil).Run(context.Background(), set,
		loadDescriptor(t, testsupport.SessionDescriptor), output, processedOnly())
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "another conversion") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestRunWriterFailure(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "session.nwb")
	writer := &fakeWriter{err: errors.New("disk full")}
	set := sources.New(map[string]string{sources.Processed: "session.mat"})

	_, err := New(&fakeLoader{data: sessionData()}, writer, nil).Run(context.Background(), set,
		loadDescriptor(t, testsupport.SessionDescriptor), output, processedOnly())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestRunRequiresMatchingSources(t *testing.T) {
	set := sources.New(map[string]string{sources.SpikeGLX: "rec.bin"})
	_, err := New(&fakeLoader{}, &fakeWriter{}, nil).Run(context.Background(), set,
		loadDescriptor(t, testsupport.SessionDescriptor), filepath.Join(t.TempDir(), "o.nwb"), processedOnly())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRunWarnsOnNonUniformSampling(t *testing.T) {
	dir := t.TempDir()
	data := sessionData()
	data.PositionTime = []float64{0, 0.1, 0.3, 0.4, 0.5}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	writer := &fakeWriter{}
	set := sources.New(map[string]string{sources.Processed: "session.mat"})

	_, err := New(&fakeLoader{data: data}, writer, logger).Run(context.Background(), set,
		loadDescriptor(t, testsupport.SessionDescriptor), filepath.Join(dir, "o.nwb"), processedOnly())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), `"event_type":"nonuniform_sampling"`) {
		t.Fatalf("expected non-uniform sampling warning, got %s", buf.String())
	}
	if rate := writer.file.Position.Series[0].Rate; rate < 9.999 || rate > 10.001 {
		t.Fatalf("rate = %v, want first-interval rate 10", rate)
	}
}

func TestRunRawWithSorting(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.WriteSpikeGLX(t, dir, "rec", 3, 20, 30000)
	sortedDir := filepath.Join(dir, "sorted")
	// The stub sorter emits fixed output by copying prepared .npy files.
	fixtures := filepath.Join(dir, "fixtures")
	writeSorterFixtures(t, fixtures)
	script := testsupport.WriteStubBinary(t, dir, "stub-sorter", `cp "`+fixtures+`"/*.npy "$2"/`+"\n")

	writer := &fakeWriter{}
	opts := Options{
		IncludeRaw:      true,
		RunSpikeSorting: true,
		Overwrite:       true,
		Sorter:          spikeglx.Sorter{Command: script, OutputDir: sortedDir},
	}
	set := sources.New(map[string]string{sources.SpikeGLX: bin})
	_, err := New(&fakeLoader{}, writer, nil).Run(context.Background(), set,
		loadDescriptor(t, testsupport.SessionDescriptor), filepath.Join(dir, "raw.nwb"), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	f := writer.file
	if len(f.Acquisition) != 1 || f.Acquisition[0].Samples() != 20 {
		t.Fatalf("unexpected acquisition %+v", f.Acquisition)
	}
	if len(f.Electrodes) != 3 {
		t.Fatalf("electrodes = %d, want one per saved channel", len(f.Electrodes))
	}
	if len(f.TemplateUnits) != 2 {
		t.Fatalf("template units = %d, want sorter output", len(f.TemplateUnits))
	}
	if len(f.Units) != 0 || len(f.Trials) != 0 {
		t.Fatal("processed tables must stay empty for raw-only runs")
	}
	if lab := f.LabMetaData; lab == nil || lab.SamplingRate == nil || *lab.SamplingRate != 30000 || lab.RawFilePath != bin {
		t.Fatalf("unexpected lab metadata %+v", f.LabMetaData)
	}
}

func TestRunRawOnlyElectrodesUseDescriptorDefaults(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.WriteSpikeGLX(t, dir, "rec", 3, 20, 30000)
	desc := loadDescriptor(t, strings.Replace(testsupport.SessionDescriptor, "Ecephys:\n",
		"Ecephys:\n  Electrodes:\n    location: dorsal MEC\n    hp_filtered: true\n", 1))
	writer := &fakeWriter{}
	set := sources.New(map[string]string{sources.SpikeGLX: bin})
	opts := Options{IncludeRaw: true, Overwrite: true}
	if _, err := New(&fakeLoader{}, writer, nil).Run(context.Background(), set, desc, filepath.Join(dir, "raw.nwb"), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(writer.file.Electrodes) != 3 {
		t.Fatalf("electrodes = %d, want 3", len(writer.file.Electrodes))
	}
	for i, e := range writer.file.Electrodes {
		if e.Location != "dorsal MEC" || e.Filtering != ecephys.FilteredDescription {
			t.Fatalf("electrode %d: location %q filtering %q", i, e.Location, e.Filtering)
		}
	}
	lab := writer.file.LabMetaData
	if lab == nil || lab.HighPassFiltered == nil || !*lab.HighPassFiltered {
		t.Fatalf("expected filtered flag in lab metadata, got %+v", lab)
	}
}

func TestRunRawOnlyPlaceholdersInheritGroupLocation(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.WriteSpikeGLX(t, dir, "rec", 2, 20, 30000)
	writer := &fakeWriter{}
	set := sources.New(map[string]string{sources.SpikeGLX: bin})
	opts := Options{IncludeRaw: true, Overwrite: true}
	if _, err := New(&fakeLoader{}, writer, nil).Run(context.Background(), set,
		loadDescriptor(t, testsupport.SessionDescriptor), filepath.Join(dir, "raw.nwb"), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, e := range writer.file.Electrodes {
		if e.Location != "MEC" || e.Filtering != ecephys.UnfilteredDescription {
			t.Fatalf("electrode %d: location %q filtering %q", i, e.Location, e.Filtering)
		}
	}
}

func TestRunWithoutLabDescriptorLeavesUnsetFieldsOut(t *testing.T) {
	dir := t.TempDir()
	data := sessionData()
	data.Sorting.SampleRate = 0
	data.Sorting.NumChannels = 0
	data.Sorting.DatPath = ""
	data.Sorting.Dtype = ""
	body, _, _ := strings.Cut(testsupport.SessionDescriptor, "LabMetaData:")
	writer := &fakeWriter{}
	set := sources.New(map[string]string{sources.Processed: "session.mat"})

	_, err := New(&fakeLoader{data: data}, writer, nil).Run(context.Background(), set,
		loadDescriptor(t, body), filepath.Join(dir, "o.nwb"), processedOnly())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lab := writer.file.LabMetaData
	if lab == nil {
		t.Fatal("expected lab metadata from processed data")
	}
	if lab.SamplingRate != nil || lab.RawFileOffset != nil || lab.RawFilePath != "" || lab.RawFileDtype != "" {
		t.Fatalf("unset fields were filled: %+v", lab)
	}
	if lab.MovieStartTime != nil || lab.BrainRegion != "" {
		t.Fatalf("descriptor-only fields were filled: %+v", lab)
	}
	if lab.NumElectrodes == nil || *lab.NumElectrodes != 4 {
		t.Fatalf("electrodes = %v, want the 4 probe rows", lab.NumElectrodes)
	}
}
