package matfile

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/hdf5"

	"nwbconv/internal/services"
)

func TestUnfoldColumnMajor3(t *testing.T) {
	// MATLAB array of size 2x3x1 stored with reversed dims [1,3,2].
	flat := []float64{1, 2, 3, 4, 5, 6}
	got, err := unfoldColumnMajor3(flat, []uint{1, 3, 2})
	if err != nil {
		t.Fatalf("unfoldColumnMajor3: %v", err)
	}
	want := [][][]float64{
		{{1}, {3}, {5}},
		{{2}, {4}, {6}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unfold mismatch (-want +got):\n%s", diff)
	}
	if _, err := unfoldColumnMajor3(flat, []uint{6}); !errors.Is(err, services.ErrDataShape) {
		t.Fatalf("expected ErrDataShape, got %v", err)
	}
}

type fixture struct {
	t *testing.T
	f *hdf5.File
}

func (fx fixture) vector(name string, values []float64) {
	fx.t.Helper()
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(values)), 1}, nil)
	if err != nil {
		fx.t.Fatalf("dataspace %s: %v", name, err)
	}
	defer space.Close()
	ds, err := fx.f.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		fx.t.Fatalf("create %s: %v", name, err)
	}
	defer ds.Close()
	if err := ds.Write(&values); err != nil {
		fx.t.Fatalf("write %s: %v", name, err)
	}
}

func (fx fixture) chars(name, value string) {
	fx.t.Helper()
	units := make([]uint16, len(value))
	for i := range value {
		units[i] = uint16(value[i])
	}
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(units)), 1}, nil)
	if err != nil {
		fx.t.Fatalf("dataspace %s: %v", name, err)
	}
	defer space.Close()
	ds, err := fx.f.CreateDataset(name, hdf5.T_NATIVE_UINT16, space)
	if err != nil {
		fx.t.Fatalf("create %s: %v", name, err)
	}
	defer ds.Close()
	if err := ds.Write(&units); err != nil {
		fx.t.Fatalf("write %s: %v", name, err)
	}
}

func writeSession(t *testing.T, path string, withGain bool) {
	t.Helper()
	writeSessionWith(t, path, sessionLayout{gain: withGain, templates: true})
}

type sessionLayout struct {
	gain      bool
	templates bool
}

func writeSessionWith(t *testing.T, path string, layout sessionLayout) {
	t.Helper()
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer f.Close()
	fx := fixture{t: t, f: f}
	fx.vector("post", []float64{0, 0.1, 0.2, 0.3, 0.4})
	fx.vector("posx", []float64{1, 2, 3, 4, 5})
	fx.vector("trial", []float64{1, 1, 2, 2, 2})
	fx.vector("trial_contrast", []float64{0.5, 0.8})
	if layout.gain {
		fx.vector("trial_gain", []float64{1, 0.5})
	}
	fx.vector("lickx", []float64{2.5})
	fx.vector("lickt", []float64{0.15})

	sp, err := f.CreateGroup("sp")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	sp.Close()
	fx.vector("sp/st", []float64{0.05, 0.25})
	fx.vector("sp/clu", []float64{4, 9})
	fx.vector("sp/cids", []float64{4, 9})
	fx.vector("sp/cgs", []float64{2, 0})
	if layout.templates {
		fx.vector("sp/spikeTemplates", []float64{0, 0})
		fx.vector("sp/tempScalingAmps", []float64{11, 12})
	}
	fx.vector("sp/xcoords", []float64{43, 11, 59})
	fx.vector("sp/ycoords", []float64{20, 20, 40})
	fx.vector("sp/sample_rate", []float64{30000})
	fx.vector("sp/n_channels_dat", []float64{385})
	fx.vector("sp/hp_filtered", []float64{1})
	fx.chars("sp/dat_path", "npI5_0417_g0_t0.imec0.ap.bin")
	fx.chars("sp/dtype", "int16")
}

func TestReaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.mat")
	writeSession(t, path, true)

	d, err := Reader{}.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]int{1, 1, 2, 2, 2}, d.Trial); diff != "" {
		t.Fatalf("trial mismatch:\n%s", diff)
	}
	sp := d.Sorting
	if sp.SampleRate != 30000 || sp.NumChannels != 385 || !sp.HighPassFiltered {
		t.Fatalf("unexpected scalars %+v", sp)
	}
	if sp.DatPath != "npI5_0417_g0_t0.imec0.ap.bin" || sp.Dtype != "int16" {
		t.Fatalf("unexpected strings %q %q", sp.DatPath, sp.Dtype)
	}
	if diff := cmp.Diff([]int64{2, 0}, sp.ClusterGroups); diff != "" {
		t.Fatalf("cgs mismatch:\n%s", diff)
	}
	if sp.Templates != nil {
		t.Fatal("expected no templates when sp.temps is absent")
	}
}

func TestReaderLoadMissingVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.mat")
	writeSession(t, path, false)
	_, err := Reader{}.Load(path)
	if !errors.Is(err, services.ErrDataShape) {
		t.Fatalf("expected ErrDataShape, got %v", err)
	}
}

func TestReaderLoadMissingFile(t *testing.T) {
	_, err := Reader{}.Load(filepath.Join(t.TempDir(), "absent.mat"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReaderLoadWithoutTemplateAssignments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.mat")
	writeSessionWith(t, path, sessionLayout{gain: true})

	d, err := Reader{}.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Sorting.SpikeTemplates != nil || d.Sorting.TemplateAmplitudes != nil {
		t.Fatalf("expected no template vectors, got %v %v", d.Sorting.SpikeTemplates, d.Sorting.TemplateAmplitudes)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestReadNumericSignedIntegers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signed.mat")
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer f.Close()

	cases := []struct {
		name  string
		dtype *hdf5.Datatype
		write func(*hdf5.Dataset) error
	}{
		{"i8", hdf5.T_NATIVE_INT8, func(ds *hdf5.Dataset) error { v := []int8{-3, 0, 7}; return ds.Write(&v) }},
		{"i16", hdf5.T_NATIVE_INT16, func(ds *hdf5.Dataset) error { v := []int16{-3, 0, 7}; return ds.Write(&v) }},
		{"i32", hdf5.T_NATIVE_INT32, func(ds *hdf5.Dataset) error { v := []int32{-3, 0, 7}; return ds.Write(&v) }},
		{"i64", hdf5.T_NATIVE_INT64, func(ds *hdf5.Dataset) error { v := []int64{-3, 0, 7}; return ds.Write(&v) }},
		{"u16", hdf5.T_NATIVE_UINT16, func(ds *hdf5.Dataset) error { v := []uint16{65533, 0, 7}; return ds.Write(&v) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			space, err := hdf5.CreateSimpleDataspace([]uint{3, 1}, nil)
			if err != nil {
				t.Fatalf("dataspace: %v", err)
			}
			defer space.Close()
			ds, err := f.CreateDataset(tc.name, tc.dtype, space)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			defer ds.Close()
			if err := tc.write(ds); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := readNumeric(ds, 3)
			if err != nil {
				t.Fatalf("readNumeric: %v", err)
			}
			want := []float64{-3, 0, 7}
			if tc.name == "u16" {
				want = []float64{65533, 0, 7}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("values mismatch:\n%s", diff)
			}
		})
	}
}
