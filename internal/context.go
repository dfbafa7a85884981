package internal

import (
	"context"
	"time"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/user"
)

type ctxKey string

const (
	ContextIdentityKey ctxKey = "identity"
	ContextActorKey    ctxKey = "actor"

	contextIdentitySlotKey ctxKey = "identity_slot"
)

type identitySlot struct {
	id *user.Identity
}

// IdentityFromContext returns the authenticated caller placed by the auth middleware.
func IdentityFromContext(ctx context.Context) (user.Identity, bool) {
	if ctx == nil {
		return user.Identity{}, false
	}
	id, ok := ctx.Value(ContextIdentityKey).(user.Identity)
	return id, ok
}

func ContextWithIdentity(ctx context.Context, id user.Identity) context.Context {
	if slot, ok := ctx.Value(contextIdentitySlotKey).(*identitySlot); ok {
		slot.id = &id
	}
	return context.WithValue(ctx, ContextIdentityKey, id)
}

// WithIdentitySlot lets middleware that runs before authentication read the
// identity placed further down the chain. The returned func reports it once
// the request has been served.
func WithIdentitySlot(ctx context.Context) (context.Context, func() (user.Identity, bool)) {
	slot := &identitySlot{}
	return context.WithValue(ctx, contextIdentitySlotKey, slot), func() (user.Identity, bool) {
		if slot.id == nil {
			return user.Identity{}, false
		}
		return *slot.id, true
	}
}

// ActorFromContext returns the profile (name, email) of the caller, used to
// denormalize audit entries.
func ActorFromContext(ctx context.Context) (user.Profile, bool) {
	if ctx == nil {
		return user.Profile{}, false
	}
	p, ok := ctx.Value(ContextActorKey).(user.Profile)
	return p, ok
}

func ContextWithActor(ctx context.Context, p user.Profile) context.Context {
	return context.WithValue(ctx, ContextActorKey, p)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
