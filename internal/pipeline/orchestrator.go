package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysift/internal/domain"
	"github.com/alanyoungcy/polysift/internal/snapshot"
)

// Notifier is the slice of the notification layer the orchestrator needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Orchestrator discovers pending snapshots and drives them through the
// stages. A filter run takes one raw snapshot to filtered/sports/invalid
// outputs; a categorize run takes one analyzer-results snapshot to
// pre-analyzed/categorized outputs. Outputs are stamped with the input's
// stamp, so a run whose primary output already exists is skipped and
// re-processing is idempotent.
type Orchestrator struct {
	store       *snapshot.Store
	ingestor    *Ingestor
	screener    *Screener
	filter      *Filter
	decoder     *Decoder
	categorizer *Categorizer

	bus          domain.SignalBus
	eventChannel string
	stream       string

	notifier    Notifier
	parallelism int
	logger      *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. bus and notifier may be nil;
// feed publishing and notifications are then skipped. parallelism bounds
// the number of runs in flight at once.
func NewOrchestrator(
	store *snapshot.Store,
	ingestor *Ingestor,
	screener *Screener,
	filter *Filter,
	decoder *Decoder,
	categorizer *Categorizer,
	bus domain.SignalBus,
	eventChannel string,
	stream string,
	notifier Notifier,
	parallelism int,
	logger *slog.Logger,
) *Orchestrator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Orchestrator{
		store:        store,
		ingestor:     ingestor,
		screener:     screener,
		filter:       filter,
		decoder:      decoder,
		categorizer:  categorizer,
		bus:          bus,
		eventChannel: eventChannel,
		stream:       stream,
		notifier:     notifier,
		parallelism:  parallelism,
		logger:       logger,
	}
}

// Run executes every pending filter run, then every pending categorize run.
// Failed runs do not stop the others; Run reports how many failed.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.RunFilters(ctx); err != nil {
		return err
	}
	return o.RunCategorize(ctx)
}

// RunLoop repeats Run on the given interval until ctx is cancelled. The
// first pass happens immediately.
func (o *Orchestrator) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := o.Run(ctx); err != nil {
		o.logger.Error("pipeline pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("pipeline loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := o.Run(ctx); err != nil {
				o.logger.Error("pipeline pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunFilters processes every raw snapshot that has no filtered output yet.
func (o *Orchestrator) RunFilters(ctx context.Context) error {
	pending, err := o.pending(snapshot.KindRaw, snapshot.KindFiltered)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		o.logger.Debug("no pending filter runs")
		return nil
	}
	return o.runAll(ctx, domain.RunKindFilter, pending, o.filterRun)
}

// RunCategorize processes every analyzer-results snapshot that has no
// categorized output yet.
func (o *Orchestrator) RunCategorize(ctx context.Context) error {
	pending, err := o.pending(snapshot.KindAnalysis, snapshot.KindCategorized)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		o.logger.Debug("no pending categorize runs")
		return nil
	}
	return o.runAll(ctx, domain.RunKindCategorize, pending, o.categorizeRun)
}

// pending lists inKind snapshots whose outKind counterpart does not exist.
func (o *Orchestrator) pending(inKind, outKind snapshot.Kind) ([]snapshot.Entry, error) {
	entries, err := o.store.List(inKind)
	if err != nil {
		return nil, fmt.Errorf("listing %s snapshots: %w", inKind, err)
	}
	var pending []snapshot.Entry
	for _, e := range entries {
		if !o.store.Exists(outKind, e.Stamp) {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

// runAll drives each pending entry through run under a bounded errgroup.
// Individual failures are collected rather than cancelling the remaining
// runs; only context cancellation stops the group early.
func (o *Orchestrator) runAll(ctx context.Context, kind string, pending []snapshot.Entry, run func(context.Context, snapshot.Entry) error) error {
	o.logger.Info("processing pending runs",
		slog.String("kind", kind),
		slog.Int("count", len(pending)),
	)

	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for _, entry := range pending {
		entry := entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := run(gctx, entry); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d %s runs failed", failed, len(pending), kind)
	}
	return nil
}

// filterRun takes one raw snapshot through ingest, screen and filter. The
// filtered output is the primary one; sports and invalid buckets are
// written alongside it under the same stamp.
func (o *Orchestrator) filterRun(ctx context.Context, in snapshot.Entry) error {
	runID := uuid.Must(uuid.NewRandom()).String()
	log := o.logger.With(
		slog.String("run_id", runID),
		slog.String("kind", domain.RunKindFilter),
		slog.String("input", in.Path),
	)
	log.Info("filter run starting")

	data, err := o.store.Read(in.Path)
	if err != nil {
		return o.failRun(ctx, log, runID, domain.RunKindFilter, in.Path, err)
	}
	doc, err := o.ingestor.Ingest(data)
	if err != nil {
		return o.failRun(ctx, log, runID, domain.RunKindFilter, in.Path, err)
	}

	res := o.screener.Screen(doc)

	filtered, err := o.filter.Apply(res.Kept)
	if err != nil {
		return o.failRun(ctx, log, runID, domain.RunKindFilter, in.Path, err)
	}

	var outputs []string
	for _, out := range []struct {
		kind snapshot.Kind
		doc  any
	}{
		{snapshot.KindSports, res.Sports},
		{snapshot.KindInvalid, res.Invalid},
		{snapshot.KindFiltered, filtered},
	} {
		path, err := o.store.Save(out.kind, in.Stamp, out.doc)
		if err != nil {
			return o.failRun(ctx, log, runID, domain.RunKindFilter, in.Path, err)
		}
		outputs = append(outputs, path)
	}

	log.Info("filter run completed",
		slog.Int("kept", res.Stats.Kept),
		slog.Int("sports_removed", res.Stats.SportsRemoved),
		slog.Int("invalid_removed", res.Stats.InvalidRemoved),
	)
	stats := res.Stats
	o.publish(ctx, domain.RunEvent{
		RunID:     runID,
		Kind:      domain.RunKindFilter,
		Input:     in.Path,
		Outputs:   outputs,
		Stats:     &stats,
		Timestamp: domain.FormatTimestamp(time.Now()),
	})
	o.notify(ctx, domain.EventRunCompleted, "Filter run completed",
		fmt.Sprintf("%s: kept %d of %d markets", in.Path, stats.Kept, stats.Total))
	return nil
}

// categorizeRun takes one analyzer-results snapshot through decode and
// categorize, and appends the categorized document to the feed stream.
func (o *Orchestrator) categorizeRun(ctx context.Context, in snapshot.Entry) error {
	runID := uuid.Must(uuid.NewRandom()).String()
	log := o.logger.With(
		slog.String("run_id", runID),
		slog.String("kind", domain.RunKindCategorize),
		slog.String("input", in.Path),
	)
	log.Info("categorize run starting")

	data, err := o.store.Read(in.Path)
	if err != nil {
		return o.failRun(ctx, log, runID, domain.RunKindCategorize, in.Path, err)
	}
	doc, err := o.decoder.Decode(data)
	if err != nil {
		return o.failRun(ctx, log, runID, domain.RunKindCategorize, in.Path, err)
	}

	categorized, err := o.categorizer.Categorize(doc)
	if err != nil {
		return o.failRun(ctx, log, runID, domain.RunKindCategorize, in.Path, err)
	}

	var outputs []string
	prePath, err := o.store.Save(snapshot.KindPreAnalyzed, in.Stamp, doc)
	if err != nil {
		return o.failRun(ctx, log, runID, domain.RunKindCategorize, in.Path, err)
	}
	outputs = append(outputs, prePath)

	catPath, err := o.store.Save(snapshot.KindCategorized, in.Stamp, categorized)
	if err != nil {
		return o.failRun(ctx, log, runID, domain.RunKindCategorize, in.Path, err)
	}
	outputs = append(outputs, catPath)

	o.streamAppend(ctx, categorized)

	log.Info("categorize run completed", slog.Int("groups", len(doc.Markets)))
	o.publish(ctx, domain.RunEvent{
		RunID:     runID,
		Kind:      domain.RunKindCategorize,
		Input:     in.Path,
		Outputs:   outputs,
		Timestamp: domain.FormatTimestamp(time.Now()),
	})
	o.notify(ctx, domain.EventRunCompleted, "Categorize run completed",
		fmt.Sprintf("%s: %d market groups", in.Path, len(doc.Markets)))
	return nil
}

// failRun reports one run failure on every channel, then returns the error
// so the caller can count it. The input snapshot stays in place.
func (o *Orchestrator) failRun(ctx context.Context, log *slog.Logger, runID, kind, input string, err error) error {
	log.Error("run failed", slog.String("error", err.Error()))
	o.publish(ctx, domain.RunEvent{
		RunID:     runID,
		Kind:      kind,
		Input:     input,
		Error:     err.Error(),
		Timestamp: domain.FormatTimestamp(time.Now()),
	})
	o.notify(ctx, domain.EventRunFailed, "Run failed",
		fmt.Sprintf("%s run on %s: %v", kind, input, err))
	return err
}

func (o *Orchestrator) publish(ctx context.Context, ev domain.RunEvent) {
	if o.bus == nil || o.eventChannel == "" {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := o.bus.Publish(ctx, o.eventChannel, payload); err != nil {
		o.logger.Warn("publishing run event failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) streamAppend(ctx context.Context, categorized *domain.CategorizedMarkets) {
	if o.bus == nil || o.stream == "" {
		return
	}
	payload, err := json.Marshal(categorized)
	if err != nil {
		o.logger.Warn("encoding categorized document failed", slog.String("error", err.Error()))
		return
	}
	if err := o.bus.StreamAppend(ctx, o.stream, payload); err != nil {
		o.logger.Warn("appending categorized document to stream failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) notify(ctx context.Context, event, title, message string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, event, title, message); err != nil {
		o.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}
