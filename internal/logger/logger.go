// Package logger builds the process-wide slog logger.
package logger

import (
	"log/slog"
	"os"

	"homeflow/internal/config"
)

// New returns a logger tuned to the environment: readable text with debug
// level in development, JSON at info level everywhere else. Additional
// handlers (the OTLP log bridge, typically) receive every record alongside
// the console; nil extras are skipped. The logger is also installed as the
// slog default.
func New(cfg *config.Config, extras ...slog.Handler) *slog.Logger {
	var handler slog.Handler
	if cfg.Server.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	handlers := []slog.Handler{handler}
	for _, extra := range extras {
		if extra != nil {
			handlers = append(handlers, extra)
		}
	}
	if len(handlers) > 1 {
		handler = NewMultiHandler(handlers...)
	}

	l := slog.New(handler).With(
		"service", cfg.Telemetry.ServiceName,
		"version", cfg.Telemetry.ServiceVersion,
	)
	slog.SetDefault(l)
	return l
}
