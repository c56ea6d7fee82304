package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"nwbconv/internal/logging"
	"nwbconv/internal/metadata"
	"nwbconv/internal/nwb"
	"nwbconv/internal/processed"
	"nwbconv/internal/services"
	"nwbconv/internal/sources"
)

// Result describes a written output file.
type Result struct {
	Path      string
	SizeBytes int64
	SizeMB    float64
	Summary   nwb.Summary
	Elapsed   time.Duration
}

// Converter assembles and writes one output file per Run.
type Converter struct {
	Loader processed.Loader
	Writer nwb.Writer
	Logger *slog.Logger
}

// New returns a Converter using the given collaborators.
func New(loader processed.Loader, writer nwb.Writer, logger *slog.Logger) *Converter {
	return &Converter{Loader: loader, Writer: writer, Logger: logger}
}

// Run converts the sources described by desc into a single file at output.
// Descriptor problems are reported before the output path is touched.
func (c *Converter) Run(ctx context.Context, set sources.Set, desc *metadata.Descriptor, output string, opts Options) (Result, error) {
	started := time.Now()
	ctx = services.WithSession(ctx, desc.NWBFile.Identifier)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(c.Logger, "pipeline"))

	if err := desc.Validate(); err != nil {
		return Result{}, err
	}
	if err := checkRequest(set, opts); err != nil {
		return Result{}, err
	}
	output, err := filepath.Abs(output)
	if err != nil {
		return Result{}, fmt.Errorf("resolve output path: %w", err)
	}
	if !opts.Overwrite {
		if _, err := os.Stat(output); err == nil {
			return Result{}, services.Wrap(services.ErrValidation, "pipeline", "output",
				output+" already exists and overwrite is disabled", nil)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("stat output: %w", err)
		}
	}

	lock := flock.New(output + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, fmt.Errorf("lock output: %w", err)
	}
	if !locked {
		return Result{}, services.Wrap(services.ErrValidation, "pipeline", "output",
			"another conversion is writing "+output, nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	logger.Info("conversion started",
		logging.String("sources", set.String()),
		logging.String("output", output),
		logging.Bool("processed", opts.IncludeProcessed),
		logging.Bool("raw", opts.IncludeRaw),
		logging.Bool("sort", opts.RunSpikeSorting),
	)

	a := &assembler{
		loader: c.Loader,
		logger: c.Logger,
		set:    set,
		desc:   desc,
		opts:   opts,
	}
	file, err := a.assemble(ctx)
	if err != nil {
		return Result{}, err
	}

	ctx = services.WithStage(ctx, "write")
	if a.extractor != nil {
		err = a.extractor.Save(output, c.Writer)
	} else {
		err = c.Writer.Write(output, file)
	}
	if err != nil {
		return Result{}, fmt.Errorf("write %s: %w", output, err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return Result{}, fmt.Errorf("stat written output: %w", err)
	}
	result := Result{
		Path:      output,
		SizeBytes: info.Size(),
		SizeMB:    float64(info.Size()) / 1e6,
		Summary:   file.Summarize(),
		Elapsed:   time.Since(started),
	}
	logging.WithContext(ctx, logging.NewComponentLogger(c.Logger, "pipeline")).Info("file saved",
		logging.String("path", result.Path),
		logging.Size("size", result.SizeBytes),
		logging.Float64("size_mb", result.SizeMB),
		logging.Int("units", result.Summary.Units),
		logging.Int("trials", result.Summary.Trials),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func checkRequest(set sources.Set, opts Options) error {
	if !opts.IncludeProcessed && !opts.IncludeRaw {
		return services.Wrap(services.ErrValidation, "pipeline", "options", "nothing to convert: enable processed or raw data", nil)
	}
	if opts.IncludeProcessed && !set.Present(sources.Processed) {
		return services.Wrap(services.ErrValidation, "pipeline", "sources", "processed data requested but no .mat source given", nil)
	}
	if opts.IncludeRaw && !set.Present(sources.SpikeGLX) {
		return services.Wrap(services.ErrValidation, "pipeline", "sources", "raw data requested but no SpikeGLX .bin source given", nil)
	}
	if opts.RunSpikeSorting && !opts.IncludeRaw {
		return services.Wrap(services.ErrValidation, "pipeline", "options", "spike sorting requires raw data", nil)
	}
	return nil
}
