package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "text")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), logger)
	ctx = WithAttrs(ctx, slog.String("component", "a"), slog.String("upload_id", "u1"))
	ctx = WithAttrs(ctx, slog.String("component", "b"))
	Debug(ctx, "hello")

	out := buf.String()
	if !strings.Contains(out, "component=b") || strings.Contains(out, "component=a") {
		t.Fatalf("log output = %q, want component overridden", out)
	}
	if !strings.Contains(out, "upload_id=u1") {
		t.Fatalf("log output = %q, want upload_id", out)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatalf("New() expected error for unknown level")
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("New() expected error for unknown format")
	}
}

func TestInfoBelowLevelIsDropped(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := WithLogger(context.Background(), logger)
	Info(ctx, "quiet")
	Warn(ctx, "loud")

	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, `"msg":"loud"`) {
		t.Fatalf("log output = %q", out)
	}
}

func TestSetDefaultAppliesToBareContext(t *testing.T) {
	previous := Logger(context.Background())
	t.Cleanup(func() { SetDefault(previous) })

	var buf bytes.Buffer
	logger, err := New(&buf, "info", "text")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	SetDefault(logger)
	SetDefault(nil)

	Info(WithComponent(context.Background(), "watcher"), "started")

	out := buf.String()
	if !strings.Contains(out, "msg=started") || !strings.Contains(out, "component=watcher") {
		t.Fatalf("log output = %q", out)
	}
}
