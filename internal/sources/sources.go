// Package sources models the set of input files handed to a conversion.
package sources

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Logical source names understood by the pipeline.
const (
	SpikeGLX  = "spikeglx data"
	Processed = "processed data"
)

// Handle points at one source file.
type Handle struct {
	Type string
	Path string
}

// Present reports whether the handle names a file.
func (h Handle) Present() bool {
	return strings.TrimSpace(h.Path) != ""
}

// Set maps logical source names to handles. It is immutable once built.
type Set struct {
	handles map[string]Handle
}

// New builds a Set from explicit name/path pairs.
func New(paths map[string]string) Set {
	handles := make(map[string]Handle, len(paths))
	for name, path := range paths {
		handles[name] = Handle{Type: "file", Path: strings.TrimSpace(path)}
	}
	return Set{handles: handles}
}

// FromPaths classifies positional source paths by extension: SpikeGLX binaries
// (.bin) and MATLAB processed data (.mat).
func FromPaths(paths []string) (Set, error) {
	named := make(map[string]string, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		var name string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".bin":
			name = SpikeGLX
		case ".mat":
			name = Processed
		default:
			return Set{}, fmt.Errorf("source %s: unsupported file type (want .bin or .mat)", path)
		}
		if existing, ok := named[name]; ok {
			return Set{}, fmt.Errorf("source %s: %s already provided by %s", path, name, existing)
		}
		named[name] = path
	}
	return New(named), nil
}

// Get returns the handle registered under name.
func (s Set) Get(name string) (Handle, bool) {
	h, ok := s.handles[name]
	return h, ok
}

// Present reports whether the named source has a non-empty path.
func (s Set) Present(name string) bool {
	h, ok := s.handles[name]
	return ok && h.Present()
}

// Path returns the path of the named source, or "" when absent.
func (s Set) Path(name string) string {
	return s.handles[name].Path
}

// PresentNames lists the sources with non-empty paths in sorted order.
func (s Set) PresentNames() []string {
	names := make([]string, 0, len(s.handles))
	for name, h := range s.handles {
		if h.Present() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// String renders the present sources for logs and the run history.
func (s Set) String() string {
	names := s.PresentNames()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+s.handles[name].Path)
	}
	return strings.Join(parts, ", ")
}
