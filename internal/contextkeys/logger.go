package contextkeys

import (
	"context"

	"search-service/internal/core/port"
)

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

// ContextWithLogger кладет логгер запроса/сообщения в контекст
func ContextWithLogger(ctx context.Context, logger port.LoggerPort) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext достает логгер; если его нет, возвращает пустой
func LoggerFromContext(ctx context.Context) port.LoggerPort {
	if logger, ok := ctx.Value(loggerKey).(port.LoggerPort); ok && logger != nil {
		return logger
	}
	return NoopLogger()
}

type noopLogger struct{}

func (noopLogger) Debug(string, port.Fields)                   {}
func (noopLogger) Info(string, port.Fields)                    {}
func (noopLogger) Warn(string, port.Fields)                    {}
func (noopLogger) Error(string, error, port.Fields)            {}
func (n noopLogger) WithFields(port.Fields) port.LoggerPort    { return n }

// NoopLogger логгер, который ничего не пишет
func NoopLogger() port.LoggerPort {
	return noopLogger{}
}
