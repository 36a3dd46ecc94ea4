package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// RequestContext holds per-request fields that should accompany every log
// line emitted while handling one gateway request.
type RequestContext struct {
	CorrelationID string
	Environment   string
	Endpoint      string
	Method        string
	Username      string
	StartTime     time.Time
}

// WithRequestContext attaches rc to ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, logContextKey, rc)
}

// RequestContextFrom retrieves the RequestContext from ctx, or nil.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(logContextKey).(*RequestContext)
	return rc
}

// DebugCtx logs at debug level, prefixing the request's correlation fields.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	Debug(msg, withRequestFields(ctx, args)...)
}

// InfoCtx logs at info level, prefixing the request's correlation fields.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	Info(msg, withRequestFields(ctx, args)...)
}

// WarnCtx logs at warn level, prefixing the request's correlation fields.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	Warn(msg, withRequestFields(ctx, args)...)
}

// ErrorCtx logs at error level, prefixing the request's correlation fields.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	Error(msg, withRequestFields(ctx, args)...)
}

func withRequestFields(ctx context.Context, args []any) []any {
	rc := RequestContextFrom(ctx)
	if rc == nil {
		return args
	}
	fields := make([]any, 0, 8+len(args))
	if rc.CorrelationID != "" {
		fields = append(fields, "correlation_id", rc.CorrelationID)
	}
	if rc.Environment != "" {
		fields = append(fields, "environment", rc.Environment)
	}
	if rc.Endpoint != "" {
		fields = append(fields, "endpoint", rc.Endpoint)
	}
	if rc.Method != "" {
		fields = append(fields, "method", rc.Method)
	}
	if rc.Username != "" {
		fields = append(fields, "username", rc.Username)
	}
	return append(fields, args...)
}
