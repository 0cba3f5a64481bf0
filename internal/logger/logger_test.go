package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf).With().Str("request", "abc123").Logger()

	ctx := WithContext(context.Background(), log)
	ctxLog := FromContext(ctx)
	ctxLog.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, "abc123") {
		t.Errorf("context logger lost its fields: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("message missing from output: %q", out)
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	// Must not panic; a default logger comes back.
	log := FromContext(context.Background())
	log.Debug().Msg("default logger is usable")
}
