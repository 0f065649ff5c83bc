package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"loud", zerolog.InfoLevel}, // unknown falls back
	}
	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q): global level = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "y", "on"} {
		if !IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"", "0", "false", "off", "no", "enabled"} {
		if IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = true, want false", v)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "third", "fourth"); got != "third" {
		t.Fatalf("FirstNonEmpty = %q, want third", got)
	}
	if got := FirstNonEmpty("", "   "); got != "" {
		t.Fatalf("all-empty must return empty string, got %q", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("no args must return empty string, got %q", got)
	}
}
