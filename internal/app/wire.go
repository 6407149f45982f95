package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/polysift/internal/blob/s3"
	"github.com/alanyoungcy/polysift/internal/cache/redis"
	"github.com/alanyoungcy/polysift/internal/config"
	"github.com/alanyoungcy/polysift/internal/domain"
	"github.com/alanyoungcy/polysift/internal/notify"
	"github.com/alanyoungcy/polysift/internal/snapshot"
)

// Dependencies is everything a mode can ask for. Wire fills in what the
// configuration calls for and leaves the rest nil; modes check before use.
type Dependencies struct {
	// Local snapshot store, always present.
	Store *snapshot.Store

	// Run-event feed and watch lock, nil unless Redis is enabled.
	SignalBus domain.SignalBus
	RunLock   domain.RunLock

	// Object storage, nil unless the mode archives.
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Notifier *notify.Notifier
}

// needsS3 reports whether the configuration calls for object storage: archive
// mode always, watch mode only when the periodic sweep is on.
func needsS3(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.Mode)
	return mode == "archive" || (mode == "watch" && cfg.Archive.Enabled)
}

// Wire builds the concrete dependencies for the configured mode. The returned
// cleanup releases them in reverse wiring order and must be called even when
// Run exits with an error.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- Snapshot store ---
	store, err := snapshot.New(cfg.Pipeline.DataDir)
	if err != nil {
		return fail(fmt.Errorf("wire: snapshot store: %w", err))
	}
	deps.Store = store

	// --- Redis feed ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RunLock = redis.NewRunLock(redisClient)
	}

	// --- Object storage ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.Enabled && cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(
			cfg.Notify.WebhookURL,
			cfg.Notify.Timeout.Duration,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, slog.Default())

	return deps, cleanup, nil
}
