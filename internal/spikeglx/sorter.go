package spikeglx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sbinet/npyio"

	"nwbconv/internal/logging"
	"nwbconv/internal/services"
	"nwbconv/internal/staging"
)

// Sorter output file names.
const (
	SpikeTimesFile     = "spike_times.npy"
	SpikeTemplatesFile = "spike_templates.npy"
	AmplitudesFile     = "amplitudes.npy"
)

// Sorter invokes an external spike sorter as
// `<command> [args...] <raw.bin> <output_dir>`.
type Sorter struct {
	Command   string
	Args      []string
	OutputDir string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// SortingResult is the imported sorter output. SpikeTimes are in seconds.
type SortingResult struct {
	OutputDir      string
	SpikeTimes     []float64
	SpikeTemplates []int64
	Amplitudes     []float64
}

// outputDir is "<stem>_sorted" under OutputDir, or beside the recording
// when no OutputDir is configured.
func (s Sorter) outputDir(binPath string) string {
	root := strings.TrimSpace(s.OutputDir)
	if root == "" {
		root = filepath.Dir(binPath)
	}
	stem := strings.TrimSuffix(filepath.Base(binPath), filepath.Ext(binPath))
	return filepath.Join(root, stem+staging.SortedSuffix)
}

// Run executes the sorter on binPath and imports its output.
func (s Sorter) Run(ctx context.Context, binPath string, sampleRate float64) (*SortingResult, error) {
	command := strings.TrimSpace(s.Command)
	if command == "" {
		return nil, services.Wrap(services.ErrConfiguration, "spikeglx", "spike sorting", "sorter command not configured", nil)
	}
	outDir := s.outputDir(binPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create sorter output dir: %w", err)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, logging.NewComponentLogger(s.Logger, "spikeglx"))
	args := append(append([]string{}, s.Args...), binPath, outDir)
	logger.Info("spike sorter starting",
		logging.String("command", command),
		logging.String("output_dir", outDir),
	)
	started := time.Now()

	cmd := exec.CommandContext(ctx, command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			detail = fmt.Sprintf("timed out after %s", s.Timeout)
		}
		return nil, services.Wrap(services.ErrExternalTool, "spikeglx", "spike sorting", detail, err)
	}
	logger.Info("spike sorter finished",
		logging.Duration("elapsed", time.Since(started)),
	)

	return LoadSorterOutput(outDir, sampleRate)
}

// LoadSorterOutput reads the sorter's .npy files. Spike times are stored as
// sample indices and converted to seconds with sampleRate.
func LoadSorterOutput(dir string, sampleRate float64) (*SortingResult, error) {
	if sampleRate <= 0 {
		return nil, services.Wrap(services.ErrValidation, "spikeglx", "sorter output", "sample rate must be positive", nil)
	}
	samples, err := readFloats(filepath.Join(dir, SpikeTimesFile))
	if err != nil {
		return nil, err
	}
	templates, err := readInts(filepath.Join(dir, SpikeTemplatesFile))
	if err != nil {
		return nil, err
	}
	amplitudes, err := readFloats(filepath.Join(dir, AmplitudesFile))
	if err != nil {
		return nil, err
	}
	if len(templates) != len(samples) || len(amplitudes) != len(samples) {
		return nil, services.Wrap(services.ErrDataShape, "spikeglx", "sorter output",
			fmt.Sprintf("%d spike times, %d templates, %d amplitudes", len(samples), len(templates), len(amplitudes)), nil)
	}
	times := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s / sampleRate
	}
	return &SortingResult{
		OutputDir:      dir,
		SpikeTimes:     times,
		SpikeTemplates: templates,
		Amplitudes:     amplitudes,
	}, nil
}

func openNpy(path string) (*os.File, *npyio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "spikeglx", "sorter output", path, err)
	}
	r, err := npyio.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read npy header %s: %w", path, err)
	}
	return f, r, nil
}

func dtype(r *npyio.Reader) string {
	return strings.TrimLeft(r.Header.Descr.Type, "<>|=")
}

func readFloats(path string) ([]float64, error) {
	f, r, err := openNpy(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch dtype(r) {
	case "f8":
		return readAs[float64, float64](path, r)
	case "f4":
		return readAs[float32, float64](path, r)
	default:
		ints, err := readIntsFrom(path, r)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(ints))
		for i, x := range ints {
			out[i] = float64(x)
		}
		return out, nil
	}
}

func readInts(path string) ([]int64, error) {
	f, r, err := openNpy(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readIntsFrom(path, r)
}

func readIntsFrom(path string, r *npyio.Reader) ([]int64, error) {
	switch dtype(r) {
	case "i8":
		return readAs[int64, int64](path, r)
	case "u8":
		return readAs[uint64, int64](path, r)
	case "i4":
		return readAs[int32, int64](path, r)
	case "u4":
		return readAs[uint32, int64](path, r)
	case "i2":
		return readAs[int16, int64](path, r)
	case "u2":
		return readAs[uint16, int64](path, r)
	default:
		return nil, services.Wrap(services.ErrDataShape, "spikeglx", "sorter output",
			fmt.Sprintf("%s: unsupported dtype %q", path, r.Header.Descr.Type), nil)
	}
}

type number interface {
	~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// readAs decodes the array in its stored element type and widens it.
func readAs[From, To number](path string, r *npyio.Reader) ([]To, error) {
	var v []From
	if err := r.Read(&v); err != nil {
		return nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	out := make([]To, len(v))
	for i, x := range v {
		out[i] = To(x)
	}
	return out, nil
}
