package ingest

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()

	release, err := lock.TryAcquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lock.TryAcquire(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress while held, got: %v", err)
	}

	release()
	again, err := lock.TryAcquire(context.Background())
	if err != nil {
		t.Errorf("Expected lock to be free after release, got: %v", err)
	}
	again()
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	lock, err := NewRedisLock(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Close()
	lock.key = "content-comb:test-lock"

	release, err := lock.TryAcquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lock.TryAcquire(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress while held, got: %v", err)
	}

	release()
	again, err := lock.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("Expected lock to be free after release, got: %v", err)
	}
	again()
}
