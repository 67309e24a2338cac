// Package logging configures the process-wide zerolog logger and hands
// out per-component child loggers.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output is the log destination. Nil falls back to stderr.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration: info-level JSON
// to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup configures the global zerolog logger and returns it. Components
// derive their own child loggers from it via NewLogger.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return log.Logger
}

// NewLogger derives a logger tagged with a component name. Every
// package of the scanner logs through one of these (cache, queue,
// fetch, scan, progress, api).
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (store, expiry, sweep counts)
//   - Queue flow (requeues, backoff, pacing changes)
//   - Internal state changes
//
// Info: Normal operation events
//   - Batch start/completion
//   - Upstream request summaries
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Rate-limit requeues and exhausted retries
//   - Per-day upstream failures (batch continues)
//   - Malformed upstream responses
//
// Error: Error conditions requiring attention
//   - Upstream transport failures
//   - Configuration errors
//   - Service unavailability
//
// Context Fields:
//   - session_id: Scan session identifier
//   - fingerprint: Normalized query cache key
//   - date: Travel date being priced
//   - status: HTTP status code
//   - duration: Request duration
//   - error_class: Error classification (rate_limit, transport, malformed, client)
//   - backoff: Requeue backoff duration
//   - ttl: Cache entry TTL
