package util

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github/chapool/go-ledger-wallet/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const CTXKeyLogger contextKey = "logger"

// WithLogger returns a copy of ctx carrying l, retrievable via LogFromContext.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, CTXKeyLogger, l)
}

// LogFromContext returns the logger attached to ctx, or the global logger.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(CTXKeyLogger).(zerolog.Logger); ok {
			return &l
		}
	}

	l := log.Logger
	return &l
}

// ConfigureLogger replaces the global zerolog logger according to cfg.
// The returned closer flushes and closes the log file, if any.
func ConfigureLogger(cfg config.LoggerServer) io.Closer {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(cfg.Level)

	var console io.Writer = os.Stderr
	if cfg.PrettyPrintConsole {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.FileMaxSizeMB,
			MaxBackups: cfg.FileMaxBackups,
		}
		writers = append(writers, file)
		closer = file
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
