// Package logger provides structured JSON logging with request context.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// RequestIDFrom extracts the request ID from the context.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// UserIDFrom extracts the user ID from the context.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Logger manages structured logging for the app.
type Logger struct {
	zl zerolog.Logger
}

// LoggerOption defines a function to configure the logger.
type LoggerOption func(*options)

type options struct {
	level   string
	output  io.Writer
	pretty  bool
	service string
}

// NewLogger builds the app logger. Defaults to JSON on stdout at info level.
func NewLogger(opts ...LoggerOption) *Logger {
	o := &options{
		level:  "info",
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	level, err := zerolog.ParseLevel(o.level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	out := o.output
	if o.pretty {
		out = zerolog.ConsoleWriter{Out: o.output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp()
	if o.service != "" {
		zl = zl.Str("service", o.service)
	}
	return &Logger{zl: zl.Logger()}
}

// Printf lets the logger act as a gorm log writer.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Middleware attaches a request ID to every request and writes one
// line per request on completion.
func (l *Logger) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(fiber.HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, reqID)
		c.SetUserContext(WithRequestID(c.UserContext(), reqID))

		start := time.Now()
		err := c.Next()

		// Handler errors have not reached the app error handler yet,
		// so the response status still reads 200 here.
		l.Info(c.UserContext()).WithFields(
			"method", c.Method(),
			"path", c.Path(),
			"status", utils.StatusOf(err, c.Response().StatusCode()),
			"latency", time.Since(start).String(),
			"ip", c.IP(),
		).Logs("request completed")
		return err
	}
}
