package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHonorsLevel(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := New("warn", format, "nutrifit")
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", format, err)
		}
		if log.Core().Enabled(zapcore.InfoLevel) {
			t.Fatalf("%s logger should drop info entries", format)
		}
		if !log.Core().Enabled(zapcore.WarnLevel) {
			t.Fatalf("%s logger should keep warn entries", format)
		}
	}
}
