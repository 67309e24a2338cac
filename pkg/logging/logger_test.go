package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default pretty should be false")
	}
}

func TestSetup_WritesToConfiguredOutput(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		emit  func(l zerolog.Logger, msg string)
	}{
		{"debug_level", LevelDebug, func(l zerolog.Logger, msg string) { l.Debug().Msg(msg) }},
		{"info_level", LevelInfo, func(l zerolog.Logger, msg string) { l.Info().Msg(msg) }},
		{"warn_level", LevelWarn, func(l zerolog.Logger, msg string) { l.Warn().Msg(msg) }},
		{"error_level", LevelError, func(l zerolog.Logger, msg string) { l.Error().Msg(msg) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(logger, "scan batch started")

			if !strings.Contains(buf.String(), "scan batch started") {
				t.Errorf("output missing message, got %q", buf.String())
			}
		})
	}
}

func TestSetup_NilOutputDefaultsToStderr(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	logger := Setup(Config{Level: LevelInfo})
	logger.Info().Msg("server starting")

	w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "server starting") {
		t.Errorf("stderr missing message, got %q", string(data))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("queue")
	logger.Info().Str("fingerprint", "fare:8000105:8011160:2026-10-01").Msg("call admitted")

	output := buf.String()
	if !strings.Contains(output, `"component":"queue"`) {
		t.Errorf("output missing component field, got %q", output)
	}
	if !strings.Contains(output, "call admitted") {
		t.Errorf("output missing message, got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("cache")

	logger.Debug().Msg("entry stored")
	logger.Info().Msg("sweep finished")
	logger.Warn().Msg("rate limited, requeueing")
	logger.Error().Msg("upstream unreachable")

	output := buf.String()
	if strings.Contains(output, "entry stored") || strings.Contains(output, "sweep finished") {
		t.Errorf("below-warn messages not filtered: %q", output)
	}
	if !strings.Contains(output, "rate limited, requeueing") {
		t.Error("warn message should be included at warn level")
	}
	if !strings.Contains(output, "upstream unreachable") {
		t.Error("error message should be included at warn level")
	}
}
