package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", SlogLevelTrace},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, test := range tests {
		if got := ParseLevel(test.in); got != test.want {
			t.Errorf("[TestParseLevel(%q)]: got %v, want %v", test.in, got, test.want)
		}
	}
}

func TestLoggerTrace(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		want    string
		wantOut bool
	}{
		{name: "Success: trace shown at trace level", level: "trace", format: FormatText, want: "level=TRACE", wantOut: true},
		{name: "Success: trace json", level: "trace", format: FormatJSON, want: `"level":"TRACE"`, wantOut: true},
		{name: "Success: trace hidden at info", level: "info", format: FormatText, wantOut: false},
	}

	for _, test := range tests {
		buf := &bytes.Buffer{}
		l := NewLogger(buf, test.level, test.format).With("client", 3)
		l.Trace("dispatch", "cmd", "session_begin")

		out := buf.String()
		if !test.wantOut {
			if out != "" {
				t.Errorf("[TestLoggerTrace(%s)]: got output %q, want none", test.name, out)
			}
			continue
		}
		if !strings.Contains(out, test.want) {
			t.Errorf("[TestLoggerTrace(%s)]: output %q does not contain %q", test.name, out, test.want)
		}
		if !strings.Contains(out, "client") {
			t.Errorf("[TestLoggerTrace(%s)]: output %q lost the With attributes", test.name, out)
		}
	}
}
