package domain

import (
	"context"
	"time"
)

// StreamMessage represents a single entry from a feed stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus publishes run events and appends output documents to durable
// streams for downstream consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RunLock serializes pipeline runs across instances.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
