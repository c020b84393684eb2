package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/insrapperswil/antimony/internal/config"
	"github.com/insrapperswil/antimony/internal/ctxlog"
	"github.com/insrapperswil/antimony/internal/scheduler"
	"github.com/insrapperswil/antimony/internal/server"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    config.Config
	srv    *server.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and server.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	cfg, err := config.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	if appConfig.ListenAddr != "" {
		cfg.ListenAddr = appConfig.ListenAddr
	}
	if appConfig.FixturesDir != "" {
		cfg.FixturesDir = appConfig.FixturesDir
	}
	logger.Debug("Configuration resolved.", "listen_addr", cfg.ListenAddr, "fixtures_dir", cfg.FixturesDir)

	var fixtures *server.Fixtures
	if cfg.FixturesDir != "" {
		fixtures, err = server.LoadFixtures(ctx, cfg.FixturesDir)
		if err != nil {
			panic(fmt.Errorf("failed to load fixtures: %w", err))
		}
	}

	srv := server.New(logger, server.Config{
		Fixtures:        fixtures,
		NotificationCap: cfg.NotificationCap,
		SchedulerOpts: []scheduler.Option{
			scheduler.WithTick(cfg.TickMin, cfg.TickMax),
		},
	})
	logger.Debug("Server state seeded.")

	return &App{
		outW:   outW,
		logger: logger,
		cfg:    cfg,
		srv:    srv,
	}
}

// Server returns the application's server. This is primarily for testing.
func (a *App) Server() *server.Server {
	return a.srv
}
