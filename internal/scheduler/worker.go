package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// LeadArchiver runs one archival pass.
type LeadArchiver interface {
	ArchiveInactive(ctx context.Context, after time.Duration) ([]uuid.UUID, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	archiver LeadArchiver
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, archiver LeadArchiver, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	return newWorker(server, archiver, log), nil
}

func newWorker(server *asynq.Server, archiver LeadArchiver, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		archiver: archiver,
		log:      log,
	}

	mux.HandleFunc(TaskArchiveInactiveLeads, w.handleArchiveInactive)

	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleArchiveInactive(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseArchiveInactivePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	ids, err := w.archiver.ArchiveInactive(ctx, payload.After())
	if err != nil {
		return err
	}

	w.log.Info("archive sweep finished", "archived", len(ids), "after", payload.After())
	return nil
}
