package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"conceptlab.org/internal/obs"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	actorKey     ctxKey = "audit_actor"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithActor attaches the acting username to the context for audit logging.
func WithActor(ctx context.Context, username string) context.Context {
	username = strings.TrimSpace(username)
	if username == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, username)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func actorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(actorKey).(string); ok {
		return v
	}
	return ""
}

// emit is swapped out in tests.
var emit = func(keysAndValues ...any) {
	obs.Logger().Infow("audit", keysAndValues...)
}

// LogEvent writes an audit entry enriched with request and actor context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	kv := []any{
		"ts", time.Now().UTC().Format(time.RFC3339Nano),
		"type", "audit",
		"event", event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		kv = append(kv, "request_id", rid)
	}
	if actor := actorFromContext(ctx); actor != "" {
		kv = append(kv, "actor", actor)
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		kv = append(kv, "fields", copyFields)
	} else {
		kv = append(kv, "fields", map[string]any{})
	}
	emit(kv...)
	return nil
}
