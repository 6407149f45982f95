package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polysift/internal/domain"
	"github.com/alanyoungcy/polysift/internal/snapshot"
)

// multipartThreshold is the snapshot size above which uploads go through
// the multipart path.
const multipartThreshold = 8 << 20

// Archiver moves snapshots older than the retention window to object
// storage and removes them locally.
type Archiver struct {
	store     *snapshot.Store
	blob      domain.BlobWriter
	verify    domain.BlobReader
	retention time.Duration
	prefix    string
	logger    *slog.Logger
}

// NewArchiver creates a new Archiver. Uploaded objects land under prefix
// with their snapshot filename preserved. When verify is non-nil each upload
// is confirmed with a HeadObject-style existence check before the local file
// is removed.
func NewArchiver(store *snapshot.Store, blob domain.BlobWriter, verify domain.BlobReader, retention time.Duration, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:     store,
		blob:      blob,
		verify:    verify,
		retention: retention,
		prefix:    prefix,
		logger:    logger,
	}
}

// Run executes a single archive sweep over every snapshot kind. A snapshot
// is archived when its embedded stamp is older than the retention cutoff.
// The local file is removed only after a successful upload.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-a.retention)
	a.logger.Info("starting archive sweep",
		slog.Time("cutoff", cutoff),
		slog.Duration("retention", a.retention),
	)

	archived := 0
	for _, kind := range snapshot.Kinds() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("archive sweep cancelled: %w", err)
		}

		entries, err := a.store.List(kind)
		if err != nil {
			return fmt.Errorf("listing %s snapshots: %w", kind, err)
		}

		for _, entry := range entries {
			if !entry.Stamp.Before(cutoff) {
				continue
			}
			if err := a.archiveOne(ctx, entry); err != nil {
				return fmt.Errorf("archiving %s: %w", entry.Path, err)
			}
			archived++
		}
	}

	a.logger.Info("archive sweep complete", slog.Int("archived", archived))
	return nil
}

func (a *Archiver) archiveOne(ctx context.Context, entry snapshot.Entry) error {
	data, err := a.store.Read(entry.Path)
	if err != nil {
		return err
	}

	key := path.Join(a.prefix, path.Base(entry.Path))
	if len(data) > multipartThreshold {
		err = a.blob.PutMultipart(ctx, key, bytes.NewReader(data), "application/json", multipartThreshold)
	} else {
		err = a.blob.Put(ctx, key, bytes.NewReader(data), "application/json")
	}
	if err != nil {
		return fmt.Errorf("uploading to %s: %w", key, err)
	}

	if a.verify != nil {
		ok, err := a.verify.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("verifying upload %s: %w", key, err)
		}
		if !ok {
			return fmt.Errorf("verifying upload %s: object not visible after upload", key)
		}
	}

	if err := a.store.Remove(entry.Path); err != nil {
		return err
	}

	a.logger.Info("archived snapshot",
		slog.String("path", entry.Path),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// RunLoop repeats Run on the given interval until the context is
// cancelled. The first sweep happens immediately.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := a.Run(ctx); err != nil {
		a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunCron sweeps on a 5-field cron schedule
// ("minute hour day-of-month month day-of-week") until the context is
// cancelled. "0 3 * * *" sweeps daily at 03:00 UTC.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronMatcher matches one cron field: any value, or an explicit list.
type cronMatcher struct {
	any    bool
	values []int
}

func (m cronMatcher) match(v int) bool {
	if m.any {
		return true
	}
	for _, want := range m.values {
		if want == v {
			return true
		}
	}
	return false
}

// cronSchedule holds the five matchers of an expression in field order:
// minute, hour, day of month, month, day of week.
type cronSchedule [5]cronMatcher

func (s cronSchedule) match(t time.Time) bool {
	vals := [5]int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, m := range s {
		if !m.match(vals[i]) {
			return false
		}
	}
	return true
}

var cronFieldNames = [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}

// parseCron parses a 5-field cron expression. Each field is "*" or a
// comma-separated value list; ranges and step syntax are not supported.
func parseCron(expr string) (cronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSchedule{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	var sched cronSchedule
	for i, field := range fields {
		m, err := parseCronMatcher(field)
		if err != nil {
			return cronSchedule{}, fmt.Errorf("parsing %s field: %w", cronFieldNames[i], err)
		}
		sched[i] = m
	}
	return sched, nil
}

func parseCronMatcher(field string) (cronMatcher, error) {
	if field == "*" {
		return cronMatcher{any: true}, nil
	}

	parts := strings.Split(field, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return cronMatcher{}, fmt.Errorf("invalid cron field value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return cronMatcher{values: values}, nil
}

// nextCronTime finds the first minute boundary after 'after' the expression
// matches. The scan stops 366 days out so an impossible expression (Feb 31)
// errors instead of spinning.
func nextCronTime(expr string, after time.Time) (time.Time, error) {
	sched, err := parseCron(expr)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if sched.match(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time found within one year for %q", expr)
}
