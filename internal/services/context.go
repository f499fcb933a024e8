package services

import "context"

type contextKey int

const (
	jobIDKey contextKey = iota
	artifactKey
	stageKey
	requestIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func lookup(ctx context.Context, key contextKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithJobID tags ctx with the coordinator job identifier.
func WithJobID(ctx context.Context, id string) context.Context { return withValue(ctx, jobIDKey, id) }

// WithArtifact tags ctx with the source archive name.
func WithArtifact(ctx context.Context, name string) context.Context {
	return withValue(ctx, artifactKey, name)
}

// WithStage tags ctx with the pipeline stage currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// WithRequestID tags ctx with a batch or feed correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func JobIDFromContext(ctx context.Context) (string, bool)     { return lookup(ctx, jobIDKey) }
func ArtifactFromContext(ctx context.Context) (string, bool)  { return lookup(ctx, artifactKey) }
func StageFromContext(ctx context.Context) (string, bool)     { return lookup(ctx, stageKey) }
func RequestIDFromContext(ctx context.Context) (string, bool) { return lookup(ctx, requestIDKey) }
