package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// PeriodicConfig combines the settings the periodic scheduler reads.
type PeriodicConfig interface {
	config.SchedulerConfig
	config.ArchiveConfig
}

// Periodic enqueues the archival sweep on a fixed interval. Exactly one
// instance should run per Redis deployment.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg PeriodicConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	task, err := NewArchiveInactiveTask(cfg.GetLeadArchiveAfter())
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("archive sweep enqueue failed", "error", err)
				return
			}
			log.Debug("archive sweep enqueued", "task_id", info.ID)
		},
	})

	spec := archiveSpec(cfg.GetLeadArchiveInterval())
	if _, err := scheduler.Register(spec, task, asynq.Queue(queueName(cfg)), asynq.MaxRetry(3)); err != nil {
		return nil, fmt.Errorf("register archive sweep %q: %w", spec, err)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return err
	}
	p.log.Info("periodic scheduler started")

	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}

func archiveSpec(interval time.Duration) string {
	if interval <= 0 {
		interval = time.Hour
	}
	return "@every " + interval.String()
}
