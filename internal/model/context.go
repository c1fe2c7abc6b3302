package model

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the request-scoped result of session resolution: who is
// calling and with which role. It is derived per request and never
// persisted.
type Identity struct {
	UserID uuid.UUID
	Handle string
	Role   Role
	Unit   string
}

type identityContextKey struct{}
type nonceContextKey struct{}

// WithIdentity attaches the resolved identity to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity resolved by the gateway.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// WithNonce attaches the per-request CSP nonce to ctx so downstream
// renderers can bind inline-script exemptions to it.
func WithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceContextKey{}, nonce)
}

// NonceFromContext returns the per-request CSP nonce.
func NonceFromContext(ctx context.Context) (string, bool) {
	nonce, ok := ctx.Value(nonceContextKey{}).(string)
	return nonce, ok
}
