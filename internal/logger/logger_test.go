package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"none":    LevelNone,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "wsbridge.log")

	l, err := New(LevelInfo, logPath, "test")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer l.Close()

	l.Info("hello %s", "world")
	l.Debug("should be filtered")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	out := string(data)
	if !strings.Contains(out, "hello world") {
		t.Errorf("log output missing message: %q", out)
	}
	if !strings.Contains(out, "[test]") {
		t.Errorf("log output missing prefix: %q", out)
	}
	if strings.Contains(out, "should be filtered") {
		t.Errorf("debug message leaked past info level: %q", out)
	}
}

func TestLevelNoneDiscards(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "unused.log")
	l, err := New(LevelNone, logPath, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer l.Close()

	l.Error("dropped")
	if _, err := os.Stat(logPath); err == nil {
		t.Errorf("log file should not exist when level is none")
	}
}

func TestWithPrefixChains(t *testing.T) {
	l, err := New(LevelNone, "", "outer")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	child := l.WithPrefix("inner")
	if child.prefix != "outer:inner" {
		t.Errorf("prefix = %q, want %q", child.prefix, "outer:inner")
	}
}
