package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceHandler_AttachesSourceAtThreshold(t *testing.T) {
	cases := []struct {
		name      string
		minLevel  slog.Level
		logLevel  slog.Level
		hasSource bool
	}{
		{"info below warn threshold", slog.LevelWarn, slog.LevelInfo, false},
		{"warn at threshold", slog.LevelWarn, slog.LevelWarn, true},
		{"error above threshold", slog.LevelWarn, slog.LevelError, true},
		{"debug threshold covers info", slog.LevelDebug, slog.LevelInfo, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			l := slog.New(NewSourceHandler(base, tc.minLevel))

			l.Log(context.Background(), tc.logLevel, "sweep finished")

			assert.Equal(t, tc.hasSource, bytes.Contains(buf.Bytes(), []byte("source=")), buf.String())
		})
	}
}

func TestSourceHandler_KeepsAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	l := slog.New(NewSourceHandler(base, slog.LevelError)).
		With("tenant_id", 42).
		WithGroup("subscription")

	l.Info("reconciled", "status", "active")

	out := buf.String()
	assert.Contains(t, out, "tenant_id=42")
	assert.Contains(t, out, "subscription.status=active")
	assert.NotContains(t, out, "source=")
}

func TestSourceHandler_DelegatesEnabled(t *testing.T) {
	base := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	h := NewSourceHandler(base, slog.LevelError)

	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSlogLogger_FatalwExits(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = os.Exit })

	l := NewLoggerWithSlog(slog.New(slog.NewTextHandler(&buf, nil))).With("component", "worker")
	l.Fatalw("failed to connect to redis", "error", "dial tcp: refused")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "component=worker")
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestSlogLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithSlog(slog.New(slog.NewTextHandler(&buf, nil))).Named("sweeper")

	l.Infow("sweep finished", "expired", 2)

	assert.Contains(t, buf.String(), "logger=sweeper")
	assert.Contains(t, buf.String(), "expired=2")
}
