package service

import (
	"context"

	"github.com/noah-isme/siswa-gateway/internal/models"
)

type actorKey struct{}

// Actor identifies the caller of a service operation. It is empty when the
// gateway runs without authentication.
type Actor struct {
	UserID string
	Role   models.UserRole
}

// WithActor attaches the caller to ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller attached by WithActor.
func ActorFrom(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor
}

func (a Actor) userIDPtr() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}
