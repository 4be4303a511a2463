package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is a type for context keys
type contextKey string

const (
	// SwitchIDKey is the context key for the switch invocation ID
	SwitchIDKey contextKey = "switch_id"
	// ModelKey is the context key for the target model name
	ModelKey contextKey = "model"
	// ContainerKey is the context key for the dependent container name
	ContainerKey contextKey = "container"
)

// contextKeys are stamped onto every record when present
var contextKeys = []contextKey{SwitchIDKey, ModelKey, ContainerKey}

// Config holds logging configuration
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
	Output io.Writer
}

// Setup configures the global logger
func Setup(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	handler = &ContextHandler{Handler: handler}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// ContextHandler adds context values to log records
type ContextHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing to the wrapped handler
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

// WithSwitchID adds a switch invocation ID to the context
func WithSwitchID(ctx context.Context, switchID string) context.Context {
	return context.WithValue(ctx, SwitchIDKey, switchID)
}

// WithModel adds the target model name to the context
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// WithContainer adds the container name to the context
func WithContainer(ctx context.Context, container string) context.Context {
	return context.WithValue(ctx, ContainerKey, container)
}

// Logger returns a logger carrying the context attributes
func Logger(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	var attrs []any
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, string(key), v)
		}
	}

	if len(attrs) > 0 {
		return logger.With(attrs...)
	}
	return logger
}

// Audit logs an audit event (always logged regardless of level)
func Audit(ctx context.Context, operation string, attrs ...any) {
	baseAttrs := []any{
		"audit", true,
		"operation", operation,
	}
	baseAttrs = append(baseAttrs, attrs...)
	Logger(ctx).Info("AUDIT", baseAttrs...)
}

// Debug logs a debug message
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Debug(msg, args...)
}

// Info logs an info message
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Info(msg, args...)
}

// Warn logs a warning message
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Warn(msg, args...)
}

// Error logs an error message
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Error(msg, args...)
}
