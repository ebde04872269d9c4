package scheduler

import (
	"context"
	"time"

	"leadflow_backend/platform/logger"
)

const defaultArchiveInterval = time.Hour

// ArchiveSweeper runs the archival pass in-process on a ticker. It is used
// when no Redis is configured for the asynq worker.
type ArchiveSweeper struct {
	archiver LeadArchiver
	log      *logger.Logger
	after    time.Duration
	interval time.Duration
}

func NewArchiveSweeper(archiver LeadArchiver, log *logger.Logger, after, interval time.Duration) *ArchiveSweeper {
	if interval <= 0 {
		interval = defaultArchiveInterval
	}

	return &ArchiveSweeper{
		archiver: archiver,
		log:      log,
		after:    after,
		interval: interval,
	}
}

// Run sweeps once immediately, then every interval until ctx is done.
func (s *ArchiveSweeper) Run(ctx context.Context) {
	if s == nil || s.archiver == nil || s.after <= 0 {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ArchiveSweeper) sweep(ctx context.Context) {
	ids, err := s.archiver.ArchiveInactive(ctx, s.after)
	if err != nil {
		s.log.Warn("archive sweep failed", "error", err)
		return
	}

	if len(ids) > 0 {
		s.log.Info("archive sweep archived inactive leads", "archived", len(ids))
	}
}
