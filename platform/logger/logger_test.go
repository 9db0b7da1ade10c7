package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProductionLoggerEmitsJSONWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "user-9")
	log.WithContext(ctx).QuoteTransition("q-1", "draft", "sent", "user-9")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "quote_transition" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
	if entry["request_id"] != "req-1" || entry["user_id"] != "user-9" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if entry["to"] != "sent" {
		t.Fatalf("expected to=sent, got %v", entry["to"])
	}
}

func TestDevelopmentLoggerIsTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("development", &buf)

	log.GatewayAttempt("create_quote", 1, 10*time.Millisecond, nil)
	if !strings.Contains(buf.String(), "gateway_attempt") {
		t.Fatalf("expected debug line in development, got %q", buf.String())
	}

	buf.Reset()
	log.GatewayAttempt("send", 2, time.Second, errors.New("503"))
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("expected warn level for failed attempt, got %q", buf.String())
	}
}
