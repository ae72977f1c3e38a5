package types

import (
	"context"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
	tenantKey    contextKey = "tenant"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores a Logger in the context.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the request-scoped Logger, or NopLogger when
// middleware did not set one.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return NopLogger{}
}

// WithTenant stores the resolved TenantCtx of a gateway request.
func WithTenant(ctx context.Context, t TenantCtx) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// TenantFromContext returns the TenantCtx set by the tenant middleware.
func TenantFromContext(ctx context.Context) (TenantCtx, bool) {
	t, ok := ctx.Value(tenantKey).(TenantCtx)
	return t, ok && !t.IsZero()
}
