package middleware

import (
	"context"

	"github.com/hpratama/resellhub-backend/pkg/types"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the caller placed in the context by Actor
// middleware. The zero Actor means no identity was resolved.
func ActorFromContext(ctx context.Context) types.Actor {
	if ctx == nil {
		return types.Actor{}
	}
	if v, ok := ctx.Value(ctxActor).(types.Actor); ok {
		return v
	}
	return types.Actor{}
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
