// Package app owns the process lifecycle for polysift: wiring the dependency
// graph from configuration and dispatching to the configured operating mode.
// Cleanup functions registered while wiring unwind everything on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polysift/internal/config"
)

// App holds what outlives a single run: the configuration, the root logger,
// and the cleanup functions registered while wiring.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New builds an App around an already-validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies and hands control to the configured mode. It
// blocks until the mode finishes or ctx is cancelled; cleanup happens in
// Close, not here, so a signal during wiring still tears down cleanly.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)
	a.logger.DebugContext(ctx, "active configuration",
		slog.Any("config", config.RedactedConfig(a.cfg)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	run, ok := a.modeFunc(a.cfg.Mode)
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
	return run(ctx, deps)
}

// modeFunc resolves a mode name, case-insensitively, to its entry point.
func (a *App) modeFunc(name string) (func(context.Context, *Dependencies) error, bool) {
	switch strings.ToLower(name) {
	case "run":
		return a.RunMode, true
	case "watch":
		return a.WatchMode, true
	case "filter":
		return a.FilterMode, true
	case "categorize":
		return a.CategorizeMode, true
	case "archive":
		return a.ArchiveMode, true
	}
	return nil, false
}

// Close releases resources in the reverse of the order they were wired.
// Calling it again after the first time is a no-op.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
