package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	ownerKey     contextKey = "owner"
	tokenKey     contextKey = "token"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOwner annotates context with the authenticated owner identifier.
func WithOwner(ctx context.Context, owner string) context.Context {
	if owner == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerKey, owner)
}

// OwnerFromContext returns the authenticated owner identifier if present.
func OwnerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(ownerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBearerToken stores the caller's bearer token for downstream calls.
func WithBearerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey, token)
}

// BearerTokenFromContext returns the caller's bearer token if present.
func BearerTokenFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(tokenKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
