// Package zapadapter bridges pgx logging to go.uber.org/zap and carries the request id
// through context so query logs can be matched with the HTTP request that caused them.
package zapadapter

import (
	"context"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// RequestIDKey is the field name the request id is logged under
const RequestIDKey = "request_id"

type Logger struct {
	logger *zap.Logger
}

func NewContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}

// WithRequestID returns logger annotated with request id from ctx, or logger itself when ctx has none
func WithRequestID(ctx context.Context, logger *zap.SugaredLogger) *zap.SugaredLogger {
	if id, ok := IDFromContext(ctx); ok {
		return logger.With(RequestIDKey, id)
	}
	return logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (pl *Logger) Log(ctx context.Context, level pgx.LogLevel, msg string, data map[string]interface{}) {
	fields := make([]zapcore.Field, 0, len(data)+2)
	if id, ok := IDFromContext(ctx); ok {
		fields = append(fields, zap.String(RequestIDKey, id))
	}
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}

	switch level {
	case pgx.LogLevelTrace:
		pl.logger.Debug(msg, append(fields, zap.Stringer("PGX_LOG_LEVEL", level))...)
	case pgx.LogLevelDebug:
		pl.logger.Debug(msg, fields...)
	case pgx.LogLevelInfo:
		pl.logger.Info(msg, fields...)
	case pgx.LogLevelWarn:
		pl.logger.Warn(msg, fields...)
	case pgx.LogLevelError:
		pl.logger.Error(msg, fields...)
	default:
		pl.logger.Error(msg, append(fields, zap.Stringer("PGX_LOG_LEVEL", level))...)
	}
}
