package internal

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"ERROR", LogLevelError},
		{"warn", LogLevelWarn},
		{" debug ", LogLevelDebug},
		{"TRACE", LogLevelTrace},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoggerScopeAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	l := NewLogger(LogLevelInfo).With("run=abc")
	l.Info("matched %d pairs", 4)
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "[INFO] [run=abc] matched 4 pairs") {
		t.Errorf("unexpected log output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at INFO level")
	}
}

func TestOrDefault(t *testing.T) {
	var l *Logger
	if l.OrDefault() != DefaultLogger {
		t.Error("nil logger should resolve to DefaultLogger")
	}
}
