package molgeo

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with molgeo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// LogReorder logs a reorder call.
func (l *Logger) LogReorder(atoms int, grid bool, duration time.Duration, err error) {
	if err != nil {
		l.Error("reorder failed",
			"atoms", atoms,
			"error", err,
		)
	} else {
		l.Debug("reorder completed",
			"atoms", atoms,
			"grid", grid,
			"duration", duration,
		)
	}
}

// LogMatch logs a match call.
func (l *Logger) LogMatch(lhs, rhs, maxNeighbors, pairs, truncated int, duration time.Duration, err error) {
	switch {
	case err != nil:
		l.Error("match failed",
			"lhs", lhs,
			"rhs", rhs,
			"max_neighbors", maxNeighbors,
			"error", err,
		)
	case truncated > 0:
		l.Warn("match truncated neighbor lists",
			"lhs", lhs,
			"rhs", rhs,
			"max_neighbors", maxNeighbors,
			"truncated", truncated,
		)
	default:
		l.Debug("match completed",
			"lhs", lhs,
			"rhs", rhs,
			"pairs", pairs,
			"duration", duration,
		)
	}
}

// LogConnectivity logs a connectivity map build.
func (l *Logger) LogConnectivity(atoms, bonds, overflowed int, duration time.Duration, err error) {
	switch {
	case err != nil:
		l.Error("connectivity map failed",
			"atoms", atoms,
			"bonds", bonds,
			"error", err,
		)
	case overflowed > 0:
		l.Warn("connectivity map overflowed",
			"atoms", atoms,
			"bonds", bonds,
			"overflowed", overflowed,
		)
	default:
		l.Debug("connectivity map completed",
			"atoms", atoms,
			"bonds", bonds,
			"duration", duration,
		)
	}
}
