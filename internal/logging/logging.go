// Package logging provides the structured logger shared by the CLI and
// the session server, built on log/slog. Events are logged under stable
// snake_case names (edit_committed, session_event, http_request) so a
// session's output can be filtered and replayed.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Level selects the minimum severity that is logged.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format selects the output encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// ParseLevel maps a level flag value ("debug", "info", "warn", "error")
// onto a Level. Anything else falls back to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat maps a format flag value ("json", "text") onto a Format.
// Anything else falls back to JSON.
func ParseFormat(s string) Format {
	if s == "text" {
		return FormatText
	}
	return FormatJSON
}

// ContextKey is the key type for values this package stores in contexts.
type ContextKey string

// RequestIDKey carries the per-request id assigned by the middleware.
const RequestIDKey ContextKey = "request_id"

var defaultLogger *slog.Logger

func init() {
	InitLogger(LevelInfo, FormatJSON)
}

var slogLevels = map[Level]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// InitLogger replaces the package logger and the slog default. Timestamps
// are rendered as RFC3339 regardless of format.
func InitLogger(level Level, format Format) {
	slogLevel, ok := slogLevels[level]
	if !ok {
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       slogLevel,
		ReplaceAttr: rfc3339Timestamps,
	}

	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func rfc3339Timestamps(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
	}
	return a
}

// GetLogger returns the package logger.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// WithRequestID stores a request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID returns the request id from the context, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns the package logger, tagged with the context's
// request id when one is present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if id := GetRequestID(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	return logger
}

// Debug logs at debug level with optional key-value pairs.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }

// Info logs at info level with optional key-value pairs.
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Warn logs at warn level with optional key-value pairs.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Error logs at error level with optional key-value pairs.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// DebugContext logs at debug level, tagged with the context's request id.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug(msg, args...)
}

// InfoContext logs at info level, tagged with the context's request id.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

// WarnContext logs at warn level, tagged with the context's request id.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

// ErrorContext logs at error level, tagged with the context's request id.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// HTTPRequestContext logs one completed HTTP request.
func HTTPRequestContext(ctx context.Context, method, path, remoteAddr string, statusCode int, duration time.Duration, args ...any) {
	all := append([]any{
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	}, args...)
	LoggerFromContext(ctx).Info("http_request", all...)
}

// EditEvent logs a committed edit operation.
func EditEvent(op, annotationID, tierName string, args ...any) {
	all := append([]any{
		"op", op,
		"annotation_id", annotationID,
		"tier", tierName,
	}, args...)
	defaultLogger.Info("edit_committed", all...)
}

// EditRejected logs an edit that failed validation and left the document
// untouched.
func EditRejected(op string, err error, args ...any) {
	all := append([]any{
		"op", op,
		"error", err.Error(),
	}, args...)
	defaultLogger.Warn("edit_rejected", all...)
}

// SessionEvent logs edit-session lifecycle events.
func SessionEvent(event, sessionID string, args ...any) {
	all := append([]any{
		"event", event,
		"session_id", sessionID,
	}, args...)
	defaultLogger.Info("session_event", all...)
}

// ServerStartup logs server startup information.
func ServerStartup(serverType, protocol string, port int, args ...any) {
	all := append([]any{
		"server_type", serverType,
		"protocol", protocol,
		"port", port,
	}, args...)
	defaultLogger.Info("server_startup", all...)
}
