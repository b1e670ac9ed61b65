// Package insights builds per-user monthly spending documents and runs them
// in batches across all users.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

type ReceiptFinder interface {
	Find(ctx context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error)
}

type Store interface {
	GetInsights(ctx context.Context, userID string, month entity.Month) (*entity.MonthlyInsights, error)
	PutInsights(ctx context.Context, in *entity.MonthlyInsights) error
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

type Generator struct {
	receipts ReceiptFinder
	store    Store
	now      func() time.Time
	logger   *slog.Logger
}

func NewGenerator(receipts ReceiptFinder, store Store, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{receipts: receipts, store: store, now: time.Now, logger: logger}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GenerateCurrent runs Generate for the current calendar month.
func (g *Generator) GenerateCurrent(ctx context.Context, userID string) (*entity.MonthlyInsights, error) {
	return g.Generate(ctx, userID, entity.MonthOf(g.now().UTC()))
}

// Generate builds and stores the document for (userID, month), replacing any
// previous one. It returns nil without storing anything when the month has
// no receipts.
func (g *Generator) Generate(ctx context.Context, userID string, month entity.Month) (*entity.MonthlyInsights, error) {
	start := time.Now()
	from, to := month.Start(), month.End()

	receipts, err := g.receipts.Find(ctx, entity.ReceiptFilter{UserID: userID, From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("load receipts for %s: %w", entity.InsightsKey(userID, month), err)
	}
	receipts, err = g.withPending(ctx, userID, month, receipts)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		g.logger.Debug("insights.generate.empty", "user_id", userID, "month", month.String())
		return nil, nil
	}

	prev, err := g.store.GetInsights(ctx, userID, month.Prev())
	if errors.Is(err, common.ErrNotFound) {
		prev = nil
	} else if err != nil {
		return nil, fmt.Errorf("load previous insights: %w", err)
	}

	doc := Build(userID, month, receipts, prev, g.now())
	if err := g.store.PutInsights(ctx, doc); err != nil {
		return nil, fmt.Errorf("store %s: %w", entity.InsightsKey(userID, month), err)
	}

	g.logger.Info("insights.generate.ok",
		"user_id", userID,
		"month", doc.Month,
		"receipts", doc.Summary.TotalReceipts,
		"trends", len(doc.Trends),
		"recommendations", len(doc.Recommendations),
		"alerts", len(doc.Alerts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// withPending appends receipts uploaded during month that have not been
// processed yet. They carry no transaction date, so the date range misses them.
func (g *Generator) withPending(ctx context.Context, userID string, month entity.Month, receipts []*entity.Receipt) ([]*entity.Receipt, error) {
	from, before := month.Start(), month.Start().AddDate(0, 1, 0)
	pending, err := g.receipts.Find(ctx, entity.ReceiptFilter{
		UserID:        userID,
		PendingOnly:   true,
		CreatedFrom:   &from,
		CreatedBefore: &before,
	})
	if err != nil {
		return nil, fmt.Errorf("load pending receipts for %s: %w", entity.InsightsKey(userID, month), err)
	}
	seen := make(map[uuid.UUID]bool, len(receipts))
	for _, r := range receipts {
		seen[r.ID] = true
	}
	for _, r := range pending {
		if r.ProcessedAt != nil || !r.TxDate.IsZero() || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		receipts = append(receipts, r)
	}
	return receipts, nil
}
