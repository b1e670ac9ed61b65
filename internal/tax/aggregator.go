// Package tax maintains the per-year relief summary for each user.
package tax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

type ReceiptFinder interface {
	Find(ctx context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error)
}

type SummaryStore interface {
	GetTaxSummary(ctx context.Context, userID string, year int) (*entity.TaxSummary, error)
	PutTaxSummary(ctx context.Context, s *entity.TaxSummary) error
}

// Aggregator recomputes summaries from scratch. Concurrent recomputes for the
// same user converge because each one is a full rescan.
type Aggregator struct {
	receipts  ReceiptFinder
	summaries SummaryStore
	logger    *slog.Logger
}

func NewAggregator(receipts ReceiptFinder, summaries SummaryStore, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{receipts: receipts, summaries: summaries, logger: logger}
}

// Calculate rescans the user's eligible processed receipts for year and replaces the
// stored summary.
func (a *Aggregator) Calculate(ctx context.Context, userID string, year int) (*entity.TaxSummary, error) {
	start := time.Now()
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	receipts, err := a.receipts.Find(ctx, entity.ReceiptFilter{
		UserID:          userID,
		From:            &from,
		To:              &to,
		TaxEligibleOnly: true,
		ProcessedOnly:   true,
	})
	if err != nil {
		a.logger.Error("tax.calculate.query_failed", "user_id", userID, "year", year, "error", err)
		return nil, fmt.Errorf("load receipts for %s: %w", entity.TaxSummaryKey(userID, year), err)
	}

	summary := Summarize(userID, year, receipts)
	if err := a.summaries.PutTaxSummary(ctx, summary); err != nil {
		a.logger.Error("tax.calculate.store_failed", "user_id", userID, "year", year, "error", err)
		return nil, fmt.Errorf("store %s: %w", entity.TaxSummaryKey(userID, year), err)
	}

	a.logger.Info("tax.calculate.ok",
		"user_id", userID,
		"year", year,
		"receipts", summary.ReceiptCount,
		"total_spent", summary.TotalSpent.StringFixed(2),
		"total_claimable", summary.TotalClaimable.StringFixed(2),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// Get returns the stored summary, computing it on first access.
func (a *Aggregator) Get(ctx context.Context, userID string, year int) (*entity.TaxSummary, error) {
	s, err := a.summaries.GetTaxSummary(ctx, userID, year)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	return a.Calculate(ctx, userID, year)
}

// Summarize sums receipts per effective category and caps each category at
// its statutory limit. Every category appears in both maps.
func Summarize(userID string, year int, receipts []*entity.Receipt) *entity.TaxSummary {
	s := &entity.TaxSummary{
		UserID:           userID,
		Year:             year,
		CategoryTotals:   make(map[constants.Category]decimal.Decimal),
		ClaimableAmounts: make(map[constants.Category]decimal.Decimal),
		TotalSpent:       decimal.Zero,
		TotalClaimable:   decimal.Zero,
	}
	for _, c := range constants.Categories() {
		s.CategoryTotals[c] = decimal.Zero
	}

	for _, r := range receipts {
		c := r.EffectiveCategory()
		total, ok := s.CategoryTotals[c]
		if !ok {
			continue
		}
		s.CategoryTotals[c] = total.Add(r.Amount)
		s.ReceiptCount++
	}

	for _, c := range constants.Categories() {
		total := s.CategoryTotals[c]
		claimable := decimal.Zero
		if limit := constants.Limit(c); limit.IsPositive() {
			claimable = decimal.Min(total, limit)
		}
		s.ClaimableAmounts[c] = claimable
		s.TotalSpent = s.TotalSpent.Add(total)
		s.TotalClaimable = s.TotalClaimable.Add(claimable)
	}
	return s
}
