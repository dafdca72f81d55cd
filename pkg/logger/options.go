package logger

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// LogBuilder builds a log entry with a fluent interface.
type LogBuilder struct {
	logger *Logger
	ctx    context.Context
	level  zerolog.Level
	fields []interface{}
	meta   map[string]string
}

// WithLevel sets the minimum log level (debug, info, warn, error).
func WithLevel(level string) LoggerOption {
	return func(o *options) { o.level = level }
}

// WithOutput sets the log destination.
func WithOutput(w io.Writer) LoggerOption {
	return func(o *options) { o.output = w }
}

// WithPretty enables human-readable console output for local runs.
func WithPretty() LoggerOption {
	return func(o *options) { o.pretty = true }
}

// WithService tags every entry with the service name.
func WithService(name string) LoggerOption {
	return func(o *options) { o.service = name }
}

// Debug starts a debug-level log entry.
func (l *Logger) Debug(ctx context.Context) *LogBuilder {
	return &LogBuilder{logger: l, ctx: ctx, level: zerolog.DebugLevel}
}

// Info starts an info-level log entry.
func (l *Logger) Info(ctx context.Context) *LogBuilder {
	return &LogBuilder{logger: l, ctx: ctx, level: zerolog.InfoLevel}
}

// Warn starts a warn-level log entry.
func (l *Logger) Warn(ctx context.Context) *LogBuilder {
	return &LogBuilder{logger: l, ctx: ctx, level: zerolog.WarnLevel}
}

// Error starts an error-level log entry.
func (l *Logger) Error(ctx context.Context) *LogBuilder {
	return &LogBuilder{logger: l, ctx: ctx, level: zerolog.ErrorLevel}
}

// WithFields adds key/value pairs to the entry.
func (b *LogBuilder) WithFields(fields ...interface{}) *LogBuilder {
	b.fields = append(b.fields, fields...)
	return b
}

// WithMeta adds string metadata to the entry.
func (b *LogBuilder) WithMeta(meta map[string]string) *LogBuilder {
	b.meta = meta
	return b
}

// Logs writes the entry.
func (b *LogBuilder) Logs(msg string) {
	evt := b.logger.zl.WithLevel(b.level)

	if b.ctx != nil {
		if reqID := RequestIDFrom(b.ctx); reqID != "" {
			evt = evt.Str("request_id", reqID)
		}
		if userID := UserIDFrom(b.ctx); userID != "" {
			evt = evt.Str("user_id", userID)
		}
	}

	for i := 0; i+1 < len(b.fields); i += 2 {
		key, ok := b.fields[i].(string)
		if !ok {
			key = fmt.Sprint(b.fields[i])
		}
		switch v := b.fields[i+1].(type) {
		case error:
			evt = evt.Str(key, v.Error())
		default:
			evt = evt.Interface(key, v)
		}
	}
	for k, v := range b.meta {
		evt = evt.Str(k, v)
	}

	evt.Msg(msg)
}
