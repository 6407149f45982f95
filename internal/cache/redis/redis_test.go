package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// testClient connects to the Redis instance named by POLYSIFT_TEST_REDIS_ADDR.
// Tests are skipped when the variable is unset or when -short is given. Keys
// are written to DB 15 and flushed on cleanup.
func testClient(t *testing.T) *Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	addr := os.Getenv("POLYSIFT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POLYSIFT_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := New(ctx, ClientConfig{
		Addr:     addr,
		Password: os.Getenv("POLYSIFT_TEST_REDIS_PASSWORD"),
		DB:       15,
	})
	if err != nil {
		t.Fatalf("connect to %s: %v", addr, err)
	}

	t.Cleanup(func() {
		client.Raw().FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestClientPing(t *testing.T) {
	client := testClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestSignalBusPublishSubscribe(t *testing.T) {
	client := testClient(t)
	bus := NewSignalBus(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := bus.Subscribe(ctx, "polysift:test:runs")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	payload := []byte(`{"run_id":"itest","status":"completed"}`)
	if err := bus.Publish(ctx, "polysift:test:runs", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if !bytes.Equal(got, payload) {
			t.Errorf("payload = %s, want %s", got, payload)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestSignalBusPatternSubscribe(t *testing.T) {
	client := testClient(t)
	bus := NewSignalBus(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A channel containing a wildcard must take the PSubscribe path and
	// still receive messages published to matching concrete channels.
	ch, err := bus.Subscribe(ctx, "polysift:test:*")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	payload := []byte(`{"run_id":"itest-pattern"}`)
	if err := bus.Publish(ctx, "polysift:test:alpha", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if !bytes.Equal(got, payload) {
			t.Errorf("payload = %s, want %s", got, payload)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for pattern message")
	}
}

func TestSignalBusStream(t *testing.T) {
	client := testClient(t)
	bus := NewSignalBus(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const stream = "polysift:test:categorized"
	for i := 0; i < 3; i++ {
		payload := []byte(fmt.Sprintf(`{"seq":%d}`, i))
		if err := bus.StreamAppend(ctx, stream, payload); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := bus.StreamRead(ctx, stream, "0", 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	for i, msg := range msgs {
		if msg.ID == "" {
			t.Errorf("message %d has empty ID", i)
		}
		want := fmt.Sprintf(`{"seq":%d}`, i)
		if string(msg.Payload) != want {
			t.Errorf("message %d payload = %s, want %s", i, msg.Payload, want)
		}
	}

	// Reading past the tip reports no messages rather than blocking.
	more, err := bus.StreamRead(ctx, stream, msgs[len(msgs)-1].ID, 10)
	if err != nil {
		t.Fatalf("read past tip: %v", err)
	}
	if len(more) != 0 {
		t.Errorf("got %d messages past tip, want 0", len(more))
	}
}

func TestRunLockAcquire(t *testing.T) {
	client := testClient(t)
	lock := NewRunLock(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const key = "polysift:test:watch"

	unlock, err := lock.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// A second acquire while held must fail with the sentinel.
	if _, err := lock.Acquire(ctx, key, time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Errorf("second acquire error = %v, want ErrLockHeld", err)
	}

	unlock()
	unlock() // safe to call twice

	// After release the lock is free again.
	unlock2, err := lock.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("reacquire after unlock: %v", err)
	}
	unlock2()
}
