package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zond/hitres"
	"gopkg.in/natefinch/lumberjack.v2"
)

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogging makes the default slog logger write text records to stdout
// and to a rotating file in s.LogsDir. Close the returned closer on exit.
func SetupLogging(s Settings) (io.Closer, error) {
	if err := os.MkdirAll(s.LogsDir, 0700); err != nil {
		return nil, hitres.WithStack(err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(s.LogsDir, "hitres.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	logger := NewLogger(s.LogLevel, os.Stdout, file)
	slog.SetDefault(logger)
	logger.Info("Logging initialized", "level", s.LogLevel, "dir", s.LogsDir)
	return file, nil
}

// NewLogger returns a logger writing text records to every writer.
func NewLogger(level string, writers ...io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
	handlers := make(multiHandler, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		}
	}
	return slog.New(handlers)
}

type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			// One broken writer shouldn't silence the rest.
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	result := make(multiHandler, len(m))
	for i, h := range m {
		result[i] = h.WithAttrs(attrs)
	}
	return result
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	result := make(multiHandler, len(m))
	for i, h := range m {
		result[i] = h.WithGroup(name)
	}
	return result
}
