package auth

import (
	"context"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
)

type identityContextKey string

const identityKey identityContextKey = "request_identity"

func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}
