package insights

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

// Scheduler runs the batch for the current month on every tick. On the first
// day of a month it also closes out the previous month.
type Scheduler struct {
	batch    *Batch
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewScheduler(batch *Batch, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{batch: batch, interval: interval, now: time.Now, logger: logger}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("insights scheduler started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("insights scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduling pass.
func (s *Scheduler) Tick(ctx context.Context) []BatchReport {
	now := s.now().UTC()
	months := []entity.Month{entity.MonthOf(now)}
	if now.Day() == 1 {
		months = append([]entity.Month{entity.MonthOf(now).Prev()}, months...)
	}

	var reports []BatchReport
	for _, m := range months {
		report, err := s.batch.Run(ctx, m)
		if err != nil {
			s.logger.Error("insights.schedule.run_failed", "month", m.String(), "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports
}
