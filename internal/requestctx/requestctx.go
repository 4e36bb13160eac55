// Package requestctx carries request-scoped values (correlation id, client IP,
// authenticated subject) through context for use cases and audit recording.
package requestctx

import (
	"context"

	"github.com/google/uuid"
)

type correlationIDKey struct{}
type clientIPKey struct{}
type identityKey struct{}

// Defaults used when no request is active (CLI commands, background schedulers).
const (
	DefaultCorrelationID = "no-correlation-id"
	DefaultClientIP      = "system"
)

// SubjectType identifies the kind of authenticated caller.
type SubjectType string

// Subject types provided by the auth collaborator.
const (
	SubjectUser    SubjectType = "USER"
	SubjectService SubjectType = "SERVICE"
)

// Identity is the authenticated caller extracted by the auth layer.
type Identity struct {
	SubjectType SubjectType
	SubjectID   uuid.UUID
	TeamID      uuid.UUID
}

// WithCorrelationID stores the correlation id in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID returns the correlation id from the context, or the default.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok && id != "" {
		return id
	}
	return DefaultCorrelationID
}

// WithClientIP stores the caller's IP address in the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the caller's IP address from the context, or "system".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return DefaultClientIP
}

// WithIdentity stores the authenticated identity in the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the authenticated identity from the context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}
