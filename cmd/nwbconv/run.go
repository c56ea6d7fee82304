package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"nwbconv/internal/history"
	"nwbconv/internal/logging"
	"nwbconv/internal/matfile"
	"nwbconv/internal/metadata"
	"nwbconv/internal/nwbhdf5"
	"nwbconv/internal/pipeline"
	"nwbconv/internal/preflight"
	"nwbconv/internal/services"
	"nwbconv/internal/sources"
)

// conversionRequest is one convert invocation or one batch document.
type conversionRequest struct {
	Sources      []string
	MetadataPath string
	// Output may be empty, in which case the descriptor's file name
	// template is expanded inside OutputDir.
	Output    string
	OutputDir string
	Options   pipeline.Options
}

type preparedConversion struct {
	desc   *metadata.Descriptor
	set    sources.Set
	output string
}

func (c *commandContext) runConversion(ctx context.Context, req conversionRequest) (pipeline.Result, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return pipeline.Result{}, err
	}
	// The run ledger is best effort: an unusable store is logged and the
	// conversion goes ahead unrecorded.
	store, err := c.openHistory()
	if err != nil {
		warnHistory(ctx, logger, "failed to open run history", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	prepared, prepErr := prepareConversion(req)

	var runID string
	if store != nil {
		runID, err = store.Begin(ctx, req.Sources, req.MetadataPath, prepared.output)
		if err != nil {
			warnHistory(ctx, logger, "failed to record run start", err)
			store = nil
		} else {
			ctx = services.WithRunID(ctx, runID)
		}
	}

	var result pipeline.Result
	runErr := prepErr
	if runErr == nil {
		result, runErr = c.execute(ctx, logger, prepared, req.Options)
	}

	if store != nil {
		recordRun(context.WithoutCancel(ctx), logger, store, runID, result, runErr)
	}
	return result, runErr
}

func prepareConversion(req conversionRequest) (preparedConversion, error) {
	var p preparedConversion
	p.output = strings.TrimSpace(req.Output)

	desc, err := metadata.Load(req.MetadataPath)
	if err != nil {
		return p, services.Wrap(services.ErrValidation, "cli", "metadata", "", err)
	}
	p.desc = desc
	if p.output == "" {
		p.output = filepath.Join(req.OutputDir, desc.OutputFileName())
	}
	if abs, err := filepath.Abs(p.output); err == nil {
		p.output = abs
	}

	if p.set, err = sources.FromPaths(req.Sources); err != nil {
		return p, services.Wrap(services.ErrValidation, "cli", "sources", "", err)
	}
	return p, nil
}

func (c *commandContext) execute(ctx context.Context, logger *slog.Logger, p preparedConversion, opts pipeline.Options) (pipeline.Result, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return pipeline.Result{}, err
	}

	checkCfg := *cfg
	checkCfg.Conversion.RunSpikeSorting = opts.RunSpikeSorting
	results := append(preflight.RunAll(ctx, &checkCfg), preflight.CheckOutputDirectory(p.output))
	if failed := preflight.Failed(results); len(failed) > 0 {
		return pipeline.Result{}, preflightError(failed)
	}

	converter := pipeline.New(matfile.Reader{}, nwbhdf5.Writer{}, logger)
	return converter.Run(ctx, p.set, p.desc, p.output, opts)
}

// recordRun stores the outcome; a ledger failure never fails the conversion.
func recordRun(ctx context.Context, logger *slog.Logger, store *history.Store, id string, result pipeline.Result, runErr error) {
	var err error
	if runErr != nil {
		err = store.Fail(ctx, id, runErr)
	} else {
		err = store.Finish(ctx, id, result.SizeBytes)
	}
	if err != nil {
		warnHistory(ctx, logger, "failed to record run", err)
	}
}

func warnHistory(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logging.WarnWithContext(
		logging.WithContext(ctx, logging.NewComponentLogger(logger, "history")),
		msg,
		"history_write_failed",
		logging.String(logging.FieldImpact, "run ledger is missing this conversion"),
		logging.Error(err),
	)
}

func preflightError(failed []preflight.Result) error {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "", "", errors.New(strings.Join(parts, "; ")))
}
