package context

import (
	"context"
	"strings"
)

type (
	jobIDKey    struct{}
	taskNameKey struct{}
	actorKey    struct{}
	featureKey  struct{}
)

type actor struct {
	kind string
	id   string
}

// WithJob tags ctx with the queued job being executed.
func WithJob(ctx context.Context, jobID, taskName string) context.Context {
	ctx = context.WithValue(ctx, jobIDKey{}, strings.TrimSpace(jobID))
	return context.WithValue(ctx, taskNameKey{}, strings.TrimSpace(taskName))
}

func JobIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(jobIDKey{}).(string)
	return value
}

func TaskNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(taskNameKey{}).(string)
	return value
}

// WithFeature tags ctx with the feature being resolved or reconciled.
func WithFeature(ctx context.Context, feature string) context.Context {
	return context.WithValue(ctx, featureKey{}, strings.TrimSpace(feature))
}

func FeatureFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(featureKey{}).(string)
	return value
}

// WithActor records who initiated the current operation.
func WithActor(ctx context.Context, kind, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{kind: strings.TrimSpace(kind), id: strings.TrimSpace(id)})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.kind, value.id
}
