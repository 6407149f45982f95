package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// testClient connects to the S3-compatible endpoint named by
// POLYSIFT_TEST_S3_ENDPOINT (e.g. a local MinIO). Tests are skipped when the
// variable is unset or when -short is given. The bucket must already exist;
// defaults match a stock MinIO container.
func testClient(t *testing.T) *Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	endpoint := os.Getenv("POLYSIFT_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("POLYSIFT_TEST_S3_ENDPOINT not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := New(ctx, ClientConfig{
		Endpoint:       endpoint,
		Region:         envOr("POLYSIFT_TEST_S3_REGION", "us-east-1"),
		Bucket:         envOr("POLYSIFT_TEST_S3_BUCKET", "polysift-test"),
		AccessKey:      envOr("POLYSIFT_TEST_S3_ACCESS_KEY", "minioadmin"),
		SecretKey:      envOr("POLYSIFT_TEST_S3_SECRET_KEY", "minioadmin"),
		ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("connect to %s: %v", endpoint, err)
	}
	if err := client.Health(ctx); err != nil {
		t.Fatalf("bucket %s not reachable: %v", client.Bucket(), err)
	}

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestBlobRoundTrip(t *testing.T) {
	client := testClient(t)
	writer := NewWriter(client)
	reader := NewReader(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	prefix := fmt.Sprintf("itest/%d", time.Now().UnixNano())
	key := prefix + "/raw_markets_20250101_120000.json"
	body := `[{"id":"0x1","question":"Will it rain?"}]`

	t.Cleanup(func() {
		_ = reader.Delete(context.Background(), key)
	})

	if err := writer.Put(ctx, key, strings.NewReader(body), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}

	exists, err := reader.Exists(ctx, key)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("object missing after put")
	}

	rc, err := reader.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != body {
		t.Errorf("body = %s, want %s", got, body)
	}

	infos, err := reader.List(ctx, prefix)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d objects under %s, want 1", len(infos), prefix)
	}
	if infos[0].Path != key {
		t.Errorf("listed path = %s, want %s", infos[0].Path, key)
	}
	if infos[0].Size != int64(len(body)) {
		t.Errorf("listed size = %d, want %d", infos[0].Size, len(body))
	}

	if err := reader.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	exists, err = reader.Exists(ctx, key)
	if err != nil {
		t.Fatalf("exists after delete: %v", err)
	}
	if exists {
		t.Error("object still present after delete")
	}

	// Delete is idempotent.
	if err := reader.Delete(ctx, key); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestBlobGetMissing(t *testing.T) {
	client := testClient(t)
	reader := NewReader(client)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := fmt.Sprintf("itest/%d/does_not_exist.json", time.Now().UnixNano())

	if _, err := reader.Get(ctx, key); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get missing error = %v, want ErrNotFound", err)
	}

	exists, err := reader.Exists(ctx, key)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("missing object reported as existing")
	}
}

func TestBlobPutMultipart(t *testing.T) {
	client := testClient(t)
	writer := NewWriter(client)
	reader := NewReader(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := fmt.Sprintf("itest/%d/archive.json", time.Now().UnixNano())
	body := strings.Repeat(`{"id":"0x1"}`, 4096)

	t.Cleanup(func() {
		_ = reader.Delete(context.Background(), key)
	})

	// A part size below the S3 minimum is clamped, so a small payload
	// still uploads as a single part.
	if err := writer.PutMultipart(ctx, key, strings.NewReader(body), "application/json", 1024); err != nil {
		t.Fatalf("multipart put: %v", err)
	}

	rc, err := reader.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != body {
		t.Errorf("body mismatch: got %d bytes, want %d", len(got), len(body))
	}
}
