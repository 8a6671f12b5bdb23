package logging

import (
	"context"
	"log/slog"

	"audiovault/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRequestID is the standardized key for per-request correlation identifiers.
	FieldRequestID = "request_id"
	// FieldOwner is the standardized key for the owning user of an asset.
	FieldOwner = "owner"
	// FieldAsset is the standardized key for a stored asset name.
	FieldAsset = "asset"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	if owner, ok := services.OwnerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOwner, owner))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
