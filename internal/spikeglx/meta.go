package spikeglx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nwbconv/internal/services"
)

// Meta is the parsed content of a SpikeGLX .meta sidecar.
type Meta struct {
	Values        map[string]string
	SampleRate    float64
	SavedChannels int
	AIRangeMax    float64
	MaxInt        float64
	FileSizeBytes int64
}

// MetaPath returns the sidecar path for a .bin file.
func MetaPath(binPath string) string {
	return strings.TrimSuffix(binPath, filepath.Ext(binPath)) + ".meta"
}

// ParseMeta reads a .meta file.
func ParseMeta(path string) (*Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "spikeglx", "open meta", path, err)
	}
	defer f.Close()
	meta, err := parseMeta(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return meta, nil
}

func parseMeta(r io.Reader) (*Meta, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimPrefix(strings.TrimSpace(key), "~")
		values[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}

	m := &Meta{Values: values}
	var err error
	if m.SampleRate, err = m.firstFloat("imSampRate", "niSampRate"); err != nil {
		return nil, err
	}
	if m.SampleRate <= 0 {
		return nil, metaErr("sample rate %.6g is not positive", m.SampleRate)
	}
	channels, err := m.firstFloat("nSavedChans")
	if err != nil {
		return nil, err
	}
	m.SavedChannels = int(channels)
	if m.SavedChannels <= 0 {
		return nil, metaErr("nSavedChans %d is not positive", m.SavedChannels)
	}
	// Range and resolution have documented defaults for each stream type.
	m.AIRangeMax = m.floatOr(0.6, "imAiRangeMax", "niAiRangeMax")
	m.MaxInt = m.floatOr(512, "imMaxInt", "niMaxInt")
	if size, ok := values["fileSizeBytes"]; ok {
		m.FileSizeBytes, err = strconv.ParseInt(size, 10, 64)
		if err != nil {
			return nil, metaErr("fileSizeBytes %q: %v", size, err)
		}
	}
	return m, nil
}

func (m *Meta) firstFloat(keys ...string) (float64, error) {
	for _, key := range keys {
		raw, ok := m.Values[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, metaErr("%s %q: %v", key, raw, err)
		}
		return v, nil
	}
	return 0, metaErr("missing %s", strings.Join(keys, " or "))
}

func (m *Meta) floatOr(fallback float64, keys ...string) float64 {
	v, err := m.firstFloat(keys...)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// Conversion returns volts per integer step.
func (m *Meta) Conversion() float64 {
	return m.AIRangeMax / m.MaxInt
}

// Samples returns the number of time samples declared by fileSizeBytes.
func (m *Meta) Samples() int64 {
	return m.FileSizeBytes / int64(2*m.SavedChannels)
}

func metaErr(format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "spikeglx", "parse meta", fmt.Sprintf(format, args...), nil)
}
