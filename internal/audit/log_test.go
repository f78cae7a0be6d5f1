package audit

import (
	"context"
	"testing"
)

func TestLogEvent(t *testing.T) {
	var captured []any
	orig := emit
	emit = func(keysAndValues ...any) { captured = keysAndValues }
	defer func() { emit = orig }()

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithActor(ctx, "alice")

	if err := LogEvent(ctx, "audit.test", map[string]any{"foo": "bar"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	entry := map[string]any{}
	for i := 0; i+1 < len(captured); i += 2 {
		key, ok := captured[i].(string)
		if !ok {
			t.Fatalf("non-string key at %d: %v", i, captured[i])
		}
		entry[key] = captured[i+1]
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "audit.test" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor"] != "alice" {
		t.Fatalf("unexpected actor: %v", entry["actor"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["foo"] != "bar" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}
