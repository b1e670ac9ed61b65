package insights

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// BatchReport records the outcome for every user in one run.
type BatchReport struct {
	Month     string            `json:"month"`
	Generated []string          `json:"generated"`
	Skipped   []string          `json:"skipped"` // no receipts that month
	Failed    map[string]string `json:"failed"`  // user id -> error
}

// Batch generates insights for every user. One user's failure never stops
// the others.
type Batch struct {
	users       UserLister
	generator   *Generator
	concurrency int
	logger      *slog.Logger
}

func NewBatch(users UserLister, generator *Generator, concurrency int, logger *slog.Logger) *Batch {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{users: users, generator: generator, concurrency: concurrency, logger: logger}
}

// Run returns an error only when the user list cannot be loaded.
func (b *Batch) Run(ctx context.Context, month entity.Month) (BatchReport, error) {
	start := time.Now()
	report := BatchReport{Month: month.String(), Failed: map[string]string{}}

	users, err := b.users.ListUserIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(b.concurrency)
	for _, userID := range users {
		g.Go(func() error {
			doc, err := b.generator.Generate(ctx, userID, month)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				b.logger.Error("insights.batch.user_failed", "user_id", userID, "month", report.Month, "error", err)
				report.Failed[userID] = err.Error()
			case doc == nil:
				report.Skipped = append(report.Skipped, userID)
			default:
				report.Generated = append(report.Generated, userID)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Generated)
	sort.Strings(report.Skipped)
	b.logger.Info("insights.batch.done",
		"month", report.Month,
		"users", len(users),
		"generated", len(report.Generated),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}
