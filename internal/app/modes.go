package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysift/internal/domain"
	"github.com/alanyoungcy/polysift/internal/pipeline"
)

// buildOrchestrator assembles the five transformation stages and the
// orchestrator that drives them from the wired dependencies.
func (a *App) buildOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	terms := a.cfg.Pipeline.ExcludeTerms
	if len(terms) == 0 {
		terms = pipeline.DefaultExcludeTerms()
	}

	return pipeline.NewOrchestrator(
		deps.Store,
		pipeline.NewIngestor(a.logger),
		pipeline.NewScreener(terms, a.cfg.Pipeline.RequireValidTokens, a.logger),
		pipeline.NewFilter(a.logger),
		pipeline.NewDecoder(a.logger),
		pipeline.NewCategorizer(a.logger),
		deps.SignalBus,
		a.cfg.Redis.EventChannel,
		a.cfg.Redis.CategorizedStream,
		deps.Notifier,
		a.cfg.Pipeline.Parallelism,
		a.logger,
	)
}

// buildArchiver assembles the retention sweep from the wired dependencies.
func (a *App) buildArchiver(deps *Dependencies) *pipeline.Archiver {
	return pipeline.NewArchiver(
		deps.Store,
		deps.BlobWriter,
		deps.BlobReader,
		a.cfg.Archive.Retention.Duration,
		a.cfg.Archive.Prefix,
		a.logger,
	)
}

// RunMode processes every pending filter run followed by every pending
// categorize run, then exits.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")
	return a.buildOrchestrator(deps).Run(ctx)
}

// FilterMode processes pending filter runs only.
func (a *App) FilterMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting filter mode")
	return a.buildOrchestrator(deps).RunFilters(ctx)
}

// CategorizeMode processes pending categorize runs only.
func (a *App) CategorizeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting categorize mode")
	return a.buildOrchestrator(deps).RunCategorize(ctx)
}

// WatchMode repeats full passes on the configured interval until the context
// is cancelled. When Redis is enabled each pass runs under the distributed
// run lock so concurrent instances do not double-process the same snapshots.
// The archive sweep joins as a second subsystem when enabled.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Pipeline.Interval.Duration
	a.logger.InfoContext(ctx, "starting watch mode", slog.Duration("interval", interval))

	g, ctx := errgroup.WithContext(ctx)
	orch := a.buildOrchestrator(deps)

	if deps.RunLock == nil {
		g.Go(func() error {
			return orch.RunLoop(ctx, interval)
		})
	} else {
		g.Go(func() error {
			return a.lockedWatch(ctx, orch, deps.RunLock, interval)
		})
	}

	if a.cfg.Archive.Enabled && deps.BlobWriter != nil {
		arch := a.buildArchiver(deps)
		switch {
		case a.cfg.Archive.Cron != "":
			g.Go(func() error {
				return arch.RunCron(ctx, a.cfg.Archive.Cron)
			})
		case a.cfg.Archive.Interval.Duration > 0:
			g.Go(func() error {
				return arch.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
			})
		default:
			a.logger.WarnContext(ctx, "archive.enabled is set but neither cron nor interval is configured; skipping periodic sweeps")
		}
	}

	return g.Wait()
}

// lockedWatch runs orchestrator passes on a ticker, taking the distributed
// run lock around each pass. A pass is skipped when another instance holds
// the lock.
func (a *App) lockedWatch(ctx context.Context, orch *pipeline.Orchestrator, lock domain.RunLock, interval time.Duration) error {
	runOnce := func() {
		unlock, err := lock.Acquire(ctx, a.cfg.Redis.LockKey, a.cfg.Redis.LockTTL.Duration)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.InfoContext(ctx, "watch pass skipped, lock held by another instance")
				return
			}
			a.logger.ErrorContext(ctx, "watch pass lock acquisition failed",
				slog.String("error", err.Error()),
			)
			return
		}
		defer unlock()

		if err := orch.Run(ctx); err != nil {
			a.logger.ErrorContext(ctx, "watch pass failed", slog.String("error", err.Error()))
		}
	}

	runOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce()
		}
	}
}

// ArchiveMode runs the retention sweep: once by default, on a cron schedule
// when archive.cron is set, or on a fixed interval when archive.interval is
// set.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	arch := a.buildArchiver(deps)
	switch {
	case a.cfg.Archive.Cron != "":
		return arch.RunCron(ctx, a.cfg.Archive.Cron)
	case a.cfg.Archive.Interval.Duration > 0:
		return arch.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
	default:
		return arch.Run(ctx)
	}
}
