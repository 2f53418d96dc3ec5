package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"noise": slog.LevelInfo,
	}
	for env, want := range tests {
		t.Setenv("LOG_LEVEL", env)
		if got := LogLevel(); got != want {
			t.Errorf("LOG_LEVEL=%q: expected %v, got %v", env, want, got)
		}
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Error("fallback should be used when context has no logger")
	}
	if got := FromContextOr(context.Background(), nil); got != slog.Default() {
		t.Error("default logger should be used without fallback")
	}

	var buf bytes.Buffer
	runLogger := WithRunID(slog.New(slog.NewTextHandler(&buf, nil)), "r1")
	ctx := WithLogger(context.Background(), runLogger)

	WithGate(WithNodeID(FromContextOr(ctx, fallback), "load.gate"), "load.gate").Info("done")

	out := buf.String()
	for _, attr := range []string{"run_id=r1", "node_id=load.gate", "gate=load.gate"} {
		if !strings.Contains(out, attr) {
			t.Errorf("log line should contain %s: %s", attr, out)
		}
	}
}
