package nwbhdf5

import (
	"fmt"

	"gonum.org/v1/hdf5"
)

// Namespaces written into neurodata_type attributes.
const (
	nsCore    = "core"
	nsCommon  = "hdmf-common"
	nsLabMeta = "ndx-giocomo-labmetadata"
)

// h5 wraps the HDF5 calls used by the writer. The first failure is kept and
// every later call becomes a no-op, so layout code reads top to bottom.
type h5 struct {
	err error
}

type attributer interface {
	CreateAttribute(name string, dtype *hdf5.Datatype, dspace *hdf5.Dataspace) (*hdf5.Attribute, error)
}

func (w *h5) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
}

// group creates name under parent and tags it with a neurodata type when
// dataType is non-empty. The caller closes the returned group.
func (w *h5) group(parent *hdf5.Group, name, namespace, dataType string) *hdf5.Group {
	if w.err != nil {
		return nil
	}
	g, err := parent.CreateGroup(name)
	if err != nil {
		w.fail("create group %s: %w", name, err)
		return nil
	}
	if dataType != "" {
		w.typed(g, namespace, dataType)
	}
	return g
}

func (w *h5) typed(obj attributer, namespace, dataType string) {
	w.attrString(obj, "namespace", namespace)
	w.attrString(obj, "neurodata_type", dataType)
}

func closeGroup(g *hdf5.Group) {
	if g != nil {
		_ = g.Close()
	}
}

// fixedString returns a fixed-length string type of n bytes.
func fixedString(n int) (*hdf5.Datatype, error) {
	t, err := hdf5.T_C_S1.Copy()
	if err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}
	if err := t.SetSize(n); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// packStrings lays values out as zero-padded fixed-width records.
func packStrings(values []string) ([]byte, int) {
	width := 1
	for _, v := range values {
		width = max(width, len(v))
	}
	buf := make([]byte, width*len(values))
	for i, v := range values {
		copy(buf[i*width:], v)
	}
	return buf, width
}

func (w *h5) attrString(obj attributer, name, value string) {
	w.attrStrings(obj, name, []string{value}, true)
}

func (w *h5) attrStrings(obj attributer, name string, values []string, scalar bool) {
	if w.err != nil || obj == nil {
		return
	}
	buf, width := packStrings(values)
	dtype, err := fixedString(width)
	if err != nil {
		w.fail("string type for %s: %w", name, err)
		return
	}
	defer dtype.Close()
	space, err := dataspace(len(values), scalar)
	if err != nil {
		w.fail("dataspace for %s: %w", name, err)
		return
	}
	defer space.Close()
	attr, err := obj.CreateAttribute(name, dtype, space)
	if err != nil {
		w.fail("create attribute %s: %w", name, err)
		return
	}
	defer attr.Close()
	if len(buf) == 0 {
		return
	}
	if err := attr.Write(&buf[0], dtype); err != nil {
		w.fail("write attribute %s: %w", name, err)
	}
}

func (w *h5) attrFloat(obj attributer, name string, value float64) {
	if w.err != nil || obj == nil {
		return
	}
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		w.fail("dataspace for %s: %w", name, err)
		return
	}
	defer space.Close()
	attr, err := obj.CreateAttribute(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		w.fail("create attribute %s: %w", name, err)
		return
	}
	defer attr.Close()
	if err := attr.Write(&value, hdf5.T_NATIVE_DOUBLE); err != nil {
		w.fail("write attribute %s: %w", name, err)
	}
}

func dataspace(n int, scalar bool) (*hdf5.Dataspace, error) {
	if scalar {
		return hdf5.CreateDataspace(hdf5.S_SCALAR)
	}
	return hdf5.CreateSimpleDataspace([]uint{uint(n)}, nil)
}

// dataset creates and fills a dataset. data must point at a slice whose
// element type matches dtype; it is skipped when count is zero.
func (w *h5) dataset(parent *hdf5.Group, name string, dtype *hdf5.Datatype, dims []uint, data any, count int) *hdf5.Dataset {
	if w.err != nil || parent == nil {
		return nil
	}
	var (
		space *hdf5.Dataspace
		err   error
	)
	if dims == nil {
		space, err = hdf5.CreateDataspace(hdf5.S_SCALAR)
	} else {
		space, err = hdf5.CreateSimpleDataspace(dims, nil)
	}
	if err != nil {
		w.fail("dataspace for %s: %w", name, err)
		return nil
	}
	defer space.Close()
	ds, err := parent.CreateDataset(name, dtype, space)
	if err != nil {
		w.fail("create dataset %s: %w", name, err)
		return nil
	}
	if count > 0 {
		if err := ds.Write(data); err != nil {
			ds.Close()
			w.fail("write dataset %s: %w", name, err)
			return nil
		}
	}
	return ds
}

func closeDataset(ds *hdf5.Dataset) {
	if ds != nil {
		_ = ds.Close()
	}
}

func (w *h5) floats(parent *hdf5.Group, name string, values []float64) *hdf5.Dataset {
	return w.dataset(parent, name, hdf5.T_NATIVE_DOUBLE, []uint{uint(len(values))}, &values, len(values))
}

func (w *h5) int64s(parent *hdf5.Group, name string, values []int64) *hdf5.Dataset {
	return w.dataset(parent, name, hdf5.T_NATIVE_INT64, []uint{uint(len(values))}, &values, len(values))
}

func (w *h5) scalarFloat(parent *hdf5.Group, name string, value float64) *hdf5.Dataset {
	return w.dataset(parent, name, hdf5.T_NATIVE_DOUBLE, nil, &value, 1)
}

func (w *h5) strings(parent *hdf5.Group, name string, values []string, scalar bool) *hdf5.Dataset {
	if w.err != nil || parent == nil {
		return nil
	}
	buf, width := packStrings(values)
	dtype, err := fixedString(width)
	if err != nil {
		w.fail("string type for %s: %w", name, err)
		return nil
	}
	defer dtype.Close()
	var dims []uint
	if !scalar {
		dims = []uint{uint(len(values))}
	}
	return w.dataset(parent, name, dtype, dims, &buf, len(values))
}

func (w *h5) scalarString(parent *hdf5.Group, name, value string) {
	closeDataset(w.strings(parent, name, []string{value}, true))
}

// optionalString writes value only when it is non-empty.
func (w *h5) optionalString(parent *hdf5.Group, name, value string) {
	if value != "" {
		w.scalarString(parent, name, value)
	}
}
