package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"leadflow_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type testConfig struct {
	redisURL string
}

func (c testConfig) GetRedisURL() string       { return c.redisURL }
func (c testConfig) GetRedisTLSInsecure() bool { return false }
func (c testConfig) GetAsynqQueueName() string { return "" }
func (c testConfig) GetAsynqConcurrency() int  { return 1 }

type fakeArchiver struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (f *fakeArchiver) ArchiveInactive(_ context.Context, after time.Duration) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, after)
	if f.err != nil {
		return nil, f.err
	}
	return []uuid.UUID{uuid.New()}, nil
}

func (f *fakeArchiver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func discardLogger() *logger.Logger {
	return logger.NewWithWriter("test", io.Discard)
}

func TestArchiveTaskRejectsNonPositiveWindow(t *testing.T) {
	if _, err := NewArchiveInactiveTask(0); err == nil {
		t.Fatal("expected error for zero window")
	}
	if _, err := ParseArchiveInactivePayload(asynq.NewTask(TaskArchiveInactiveLeads, []byte(`{"afterSeconds":0}`))); err == nil {
		t.Fatal("expected error for zero window payload")
	}
}

func TestWorkerRunsArchiveWithPayloadWindow(t *testing.T) {
	archiver := &fakeArchiver{}
	w := newWorker(nil, archiver, discardLogger())

	task, err := NewArchiveInactiveTask(15 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.handleArchiveInactive(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(archiver.calls) != 1 || archiver.calls[0] != 15*24*time.Hour {
		t.Fatalf("expected one sweep with a 15 day window, got %v", archiver.calls)
	}
}

func TestWorkerSkipsRetryForBadPayload(t *testing.T) {
	w := newWorker(nil, &fakeArchiver{}, discardLogger())

	err := w.handleArchiveInactive(context.Background(), asynq.NewTask(TaskArchiveInactiveLeads, []byte("not json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestWorkerReturnsArchiverError(t *testing.T) {
	w := newWorker(nil, &fakeArchiver{err: errors.New("db down")}, discardLogger())
	task, _ := NewArchiveInactiveTask(time.Hour)

	if err := w.handleArchiveInactive(context.Background(), task); err == nil {
		t.Fatal("expected archiver error to surface for retry")
	}
}

func TestClientEnqueuesArchiveSweep(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(testConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.EnqueueArchiveSweep(ctx, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.EnqueueArchiveSweep(ctx, time.Hour); err != nil {
		t.Fatalf("duplicate enqueue should be absorbed, got %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	n, err := rdb.LLen(ctx, "asynq:{default}:pending").Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one pending sweep, got %d", n)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testConfig{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestRedisClientOptAppliesInsecureTLS(t *testing.T) {
	opt, err := redisClientOpt("rediss://user:pw@cache.internal:6380/2", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.DB != 2 || opt.Password != "pw" {
		t.Fatalf("unexpected options %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config")
	}
}

func TestArchiveSpecUsesInterval(t *testing.T) {
	if got := archiveSpec(30 * time.Minute); got != "@every 30m0s" {
		t.Fatalf("unexpected spec %q", got)
	}
	if got := archiveSpec(0); got != "@every 1h0m0s" {
		t.Fatalf("unexpected default spec %q", got)
	}
}

func TestArchiveSweeperSweepsImmediatelyAndStops(t *testing.T) {
	archiver := &fakeArchiver{}
	sweeper := NewArchiveSweeper(archiver, discardLogger(), time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for archiver.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated sweeps, got %d", archiver.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestArchiveSweeperDisabledWithoutWindow(t *testing.T) {
	archiver := &fakeArchiver{}
	NewArchiveSweeper(archiver, discardLogger(), 0, time.Millisecond).Run(context.Background())
	if archiver.callCount() != 0 {
		t.Fatalf("expected no sweep, got %d", archiver.callCount())
	}
}
