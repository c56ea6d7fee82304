package services

import "context"

type contextKey int

const (
	runIDKey contextKey = iota
	stageKey
	sessionKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func value(ctx context.Context, key contextKey) (string, bool) {
	s, ok := ctx.Value(key).(string)
	return s, ok && s != ""
}

// WithRunID tags ctx with the history run id. Empty ids are ignored.
func WithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run id set by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) { return value(ctx, runIDKey) }

// WithStage tags ctx with the pipeline stage currently executing.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage set by WithStage.
func StageFromContext(ctx context.Context) (string, bool) { return value(ctx, stageKey) }

// WithSession tags ctx with the NWB session identifier being built.
func WithSession(ctx context.Context, session string) context.Context {
	return withValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session set by WithSession.
func SessionFromContext(ctx context.Context) (string, bool) { return value(ctx, sessionKey) }
