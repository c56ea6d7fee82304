package matfile

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf16"

	"gonum.org/v1/hdf5"

	"nwbconv/internal/processed"
	"nwbconv/internal/services"
)

// Reader loads MATLAB v7.3 session files. It satisfies processed.Loader.
type Reader struct{}

// Load reads the behavioral vectors and the sp struct from path.
func (Reader) Load(path string) (*processed.Data, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "matfile", "open", path, err)
	}
	defer f.Close()

	m := &mat{file: f, path: path}
	d := &processed.Data{
		PositionTime:  m.floats("post", true),
		Position:      m.floats("posx", true),
		TrialContrast: m.floats("trial_contrast", true),
		TrialGain:     m.floats("trial_gain", true),
		LickPosition:  m.floats("lickx", false),
		LickTime:      m.floats("lickt", false),
	}
	d.Trial = toInts(m.floats("trial", true))

	sp := &d.Sorting
	sp.SpikeTimes = m.floats("sp/st", true)
	sp.Clusters = toInt64s(m.floats("sp/clu", true))
	sp.ClusterIDs = toInt64s(m.floats("sp/cids", true))
	sp.ClusterGroups = toInt64s(m.floats("sp/cgs", true))
	sp.XCoords = m.floats("sp/xcoords", true)
	sp.YCoords = m.floats("sp/ycoords", true)
	sp.SpikeTemplates = toInt64s(m.floats("sp/spikeTemplates", false))
	sp.TemplateAmplitudes = m.floats("sp/tempScalingAmps", false)
	sp.SampleRate = m.scalar("sp/sample_rate")
	sp.NumChannels = int(m.scalar("sp/n_channels_dat"))
	sp.Offset = int64(m.scalar("sp/offset"))
	sp.HighPassFiltered = m.scalar("sp/hp_filtered") != 0
	sp.DatPath = m.chars("sp/dat_path")
	sp.Dtype = m.chars("sp/dtype")
	if flat, dims := m.array("sp/temps", false); flat != nil {
		temps, err := unfoldColumnMajor3(flat, dims)
		if err != nil && m.err == nil {
			m.err = err
		}
		sp.Templates = temps
	}
	if m.err != nil {
		return nil, m.err
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// mat records the first error and turns later reads into no-ops.
type mat struct {
	file *hdf5.File
	path string
	err  error
}

func (m *mat) exists(name string) bool {
	parts := strings.Split(name, "/")
	for i := range parts {
		if !m.file.LinkExists(strings.Join(parts[:i+1], "/")) {
			return false
		}
	}
	return true
}

func (m *mat) array(name string, required bool) ([]float64, []uint) {
	if m.err != nil {
		return nil, nil
	}
	if !m.exists(name) {
		if required {
			m.err = services.Wrap(services.ErrDataShape, "matfile", "read", fmt.Sprintf("%s: missing variable %q", m.path, name), nil)
		}
		return nil, nil
	}
	ds, err := m.file.OpenDataset(name)
	if err != nil {
		m.err = fmt.Errorf("open %s in %s: %w", name, m.path, err)
		return nil, nil
	}
	defer ds.Close()
	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		m.err = fmt.Errorf("dims of %s in %s: %w", name, m.path, err)
		return nil, nil
	}
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	if isEmptyMatrix(ds) || n == 0 {
		return []float64{}, dims
	}
	data, err := readNumeric(ds, n)
	if err != nil {
		m.err = fmt.Errorf("read %s in %s: %w", name, m.path, err)
		return nil, nil
	}
	return data, dims
}

// readNumeric reads into a buffer matching the stored element type, since the
// dataset type is used as the memory type, and widens to float64.
func readNumeric(ds *hdf5.Dataset, n int) ([]float64, error) {
	dtype, err := ds.Datatype()
	if err != nil {
		return nil, err
	}
	defer dtype.Close()
	class, size := dtype.Class(), dtype.Size()
	signed := class == hdf5.T_INTEGER && isSigned(dtype, size)
	switch {
	case class == hdf5.T_FLOAT && size == 8:
		return readAs[float64](ds, n)
	case class == hdf5.T_FLOAT && size == 4:
		return readAs[float32](ds, n)
	case class == hdf5.T_INTEGER && size == 1 && signed:
		return readAs[int8](ds, n)
	case class == hdf5.T_INTEGER && size == 1:
		return readAs[uint8](ds, n)
	case class == hdf5.T_INTEGER && size == 2 && signed:
		return readAs[int16](ds, n)
	case class == hdf5.T_INTEGER && size == 2:
		return readAs[uint16](ds, n)
	case class == hdf5.T_INTEGER && size == 4 && signed:
		return readAs[int32](ds, n)
	case class == hdf5.T_INTEGER && size == 4:
		return readAs[uint32](ds, n)
	case class == hdf5.T_INTEGER && size == 8 && signed:
		return readAs[int64](ds, n)
	case class == hdf5.T_INTEGER && size == 8:
		return readAs[uint64](ds, n)
	default:
		return nil, services.Wrap(services.ErrDataShape, "matfile", "read",
			fmt.Sprintf("unsupported element type (class %d, %d bytes)", class, size), nil)
	}
}

// isSigned reports whether an integer type matches one of the standard
// two's-complement layouts of the given width.
func isSigned(dtype *hdf5.Datatype, size uint) bool {
	var candidates []*hdf5.Datatype
	switch size {
	case 1:
		candidates = []*hdf5.Datatype{hdf5.T_STD_I8LE, hdf5.T_STD_I8BE}
	case 2:
		candidates = []*hdf5.Datatype{hdf5.T_STD_I16LE, hdf5.T_STD_I16BE}
	case 4:
		candidates = []*hdf5.Datatype{hdf5.T_STD_I32LE, hdf5.T_STD_I32BE}
	case 8:
		candidates = []*hdf5.Datatype{hdf5.T_STD_I64LE, hdf5.T_STD_I64BE}
	}
	for _, c := range candidates {
		if dtype.Equal(c) {
			return true
		}
	}
	return false
}

type element interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

func readAs[T element](ds *hdf5.Dataset, n int) ([]float64, error) {
	buf := make([]T, n)
	if err := ds.Read(&buf); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i, v := range buf {
		out[i] = float64(v)
	}
	return out, nil
}

func (m *mat) floats(name string, required bool) []float64 {
	data, _ := m.array(name, required)
	return data
}

func (m *mat) scalar(name string) float64 {
	data := m.floats(name, false)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}

// chars decodes a MATLAB char array stored as UTF-16 code units.
func (m *mat) chars(name string) string {
	if m.err != nil || !m.exists(name) {
		return ""
	}
	ds, err := m.file.OpenDataset(name)
	if err != nil {
		m.err = fmt.Errorf("open %s in %s: %w", name, m.path, err)
		return ""
	}
	defer ds.Close()
	space := ds.Space()
	defer space.Close()
	if isEmptyMatrix(ds) {
		return ""
	}
	units := make([]uint16, space.SimpleExtentNPoints())
	if len(units) == 0 {
		return ""
	}
	if err := ds.Read(&units); err != nil {
		m.err = fmt.Errorf("read %s in %s: %w", name, m.path, err)
		return ""
	}
	return string(utf16.Decode(units))
}

// isEmptyMatrix reports the MATLAB_empty marker MATLAB writes for [] values.
func isEmptyMatrix(ds *hdf5.Dataset) bool {
	attr, err := ds.OpenAttribute("MATLAB_empty")
	if err != nil {
		return false
	}
	defer attr.Close()
	var flag uint8
	if err := attr.Read(&flag, hdf5.T_NATIVE_UINT8); err != nil {
		return false
	}
	return flag != 0
}

// unfoldColumnMajor3 rebuilds a MATLAB [a x b x c] array from its HDF5
// storage, which lists dimensions in reverse order.
func unfoldColumnMajor3(flat []float64, dims []uint) ([][][]float64, error) {
	if len(dims) != 3 {
		return nil, services.Wrap(services.ErrDataShape, "matfile", "temps", fmt.Sprintf("expected 3 dimensions, got %d", len(dims)), nil)
	}
	c, b, a := int(dims[0]), int(dims[1]), int(dims[2])
	if len(flat) != a*b*c {
		return nil, services.Wrap(services.ErrDataShape, "matfile", "temps", fmt.Sprintf("%d values for %dx%dx%d", len(flat), a, b, c), nil)
	}
	out := make([][][]float64, a)
	for i := range out {
		out[i] = make([][]float64, b)
		for j := range out[i] {
			row := make([]float64, c)
			for k := range row {
				row[k] = flat[k*b*a+j*a+i]
			}
			out[i][j] = row
		}
	}
	return out, nil
}

func toInts(v []float64) []int {
	if v == nil {
		return nil
	}
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(math.Round(x))
	}
	return out
}

func toInt64s(v []float64) []int64 {
	if v == nil {
		return nil
	}
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(math.Round(x))
	}
	return out
}
