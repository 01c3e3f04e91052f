package logger

import (
	"log/slog"
	"os"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
)

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

type Backend string

const (
	BackendStd Backend = "std"
	BackendZap Backend = "zap"
)

type Config struct {
	Env       Env
	Service   string
	Version   string
	Backend   Backend
	AddSource bool
	Debug     bool
}

// Init installs the process-wide slog default. Call sites use slog
// directly; the backend is selected here once at startup.
func Init(cfg Config) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	switch cfg.Backend {
	case BackendZap:
		var zl *zap.Logger
		if cfg.Env == EnvProd {
			zl, _ = zap.NewProduction()
		} else {
			zl, _ = zap.NewDevelopment()
		}
		handler = slogzap.Option{
			Level:     level,
			Logger:    zl,
			AddSource: cfg.AddSource,
		}.NewZapHandler()
	default:
		opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
		if cfg.Env == EnvProd {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}
	}

	log := slog.New(handler).With(
		"service", cfg.Service,
		"version", cfg.Version,
	)
	slog.SetDefault(log)
}
