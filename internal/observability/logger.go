package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/i474232898/gaf-clearance/internal/config"
)

const appName = "gaf-clearance"

// NewLogger builds the process logger. In dev it writes colourised text to
// stdout; otherwise JSON. A configured LogFile receives JSON in both modes
// and is rotated by size.
func NewLogger(cfg *config.AppConfig) *slog.Logger {
	var file io.Writer
	if cfg.LogFile != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    64, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
	}

	if cfg.AppEnv == "dev" {
		var h slog.Handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		if file != nil {
			h = slogmulti.Fanout(h, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: cfg.LogLevel}))
		}
		return slog.New(h).With("app", appName)
	}

	var w io.Writer = os.Stdout
	if file != nil {
		w = io.MultiWriter(os.Stdout, file)
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"env", cfg.AppEnv,
	)
}
