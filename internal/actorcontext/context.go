// Package actorcontext carries the acting user identity used for
// CreatedBy/ModifiedBy/ReceivedBy stamps. Background jobs run as "System".
package actorcontext

import (
	"context"
	"strings"
)

// SystemActor is stamped when no user identity is present in the context.
const SystemActor = "System"

type actorKey struct{}

// WithActor stores the acting user identity in the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the acting user identity, falling back to SystemActor.
func Actor(ctx context.Context) string {
	if ctx == nil {
		return SystemActor
	}
	value, _ := ctx.Value(actorKey{}).(string)
	value = strings.TrimSpace(value)
	if value == "" {
		return SystemActor
	}
	return value
}
