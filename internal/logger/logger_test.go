package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if NewWithLevel("debug").GetLevel() != zerolog.DebugLevel {
		t.Error("Expected NewWithLevel to honour the level")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestNewConsole(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewConsole(buf, "warn")

	log.Info().Msg("hidden")
	log.Warn().Str("owner", "alice").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info entries to be filtered, got: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "owner=alice") {
		t.Errorf("Expected console output with fields, got: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"job_id": "123",
		"action": "recompute",
	})
	log.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"job_id":"123"`) {
		t.Errorf("Expected output to contain job_id field, got: %s", output)
	}
	if !strings.Contains(output, `"action":"recompute"`) {
		t.Errorf("Expected output to contain action field, got: %s", output)
	}
}

func TestForOwner(t *testing.T) {
	buf := &bytes.Buffer{}
	log := ForOwner(NewWithWriter(buf), "alice")
	log.Info().Msg("reconciled")

	if !strings.Contains(buf.String(), `"owner":"alice"`) {
		t.Errorf("Expected owner field, got: %s", buf.String())
	}
}
