// Package anomaly flags suspicious receipts against the user's own history.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

const (
	sameDayLookup = 5
	weekLookup    = 10
	weekWindow    = 7 // days either side
)

// ReceiptFinder is the slice of the receipt store the detector reads.
type ReceiptFinder interface {
	Find(ctx context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error)
}

// Detector runs every check against a receipt. It never fails outward.
type Detector struct {
	receipts ReceiptFinder
	logger   *slog.Logger
}

func NewDetector(receipts ReceiptFinder, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{receipts: receipts, logger: logger}
}

// history is the slice of the user's other receipts each check needs.
type history struct {
	sameDay []*entity.Receipt
	week    []*entity.Receipt
	month   []*entity.Receipt
}

// Detect returns all findings for r. Any history lookup failure yields an
// empty list.
func (d *Detector) Detect(ctx context.Context, userID string, r *entity.Receipt) []entity.AnomalyFinding {
	h, err := d.loadHistory(ctx, userID, r)
	if err != nil {
		d.logger.Warn("anomaly.detect.history_failed", "receipt_id", r.ID, "user_id", userID, "error", err)
		return []entity.AnomalyFinding{}
	}

	findings := make([]entity.AnomalyFinding, 0)
	findings = append(findings, CheckSameDayDuplicate(h.sameDay)...)
	findings = append(findings, CheckRepeatedWithinWeek(r, h.week)...)
	findings = append(findings, CheckStatisticalOutlier(r, h.month)...)
	findings = append(findings, CheckRoundAmount(r, h.month)...)
	findings = append(findings, CheckZeroAmount(r)...)
	findings = append(findings, CheckHighValue(r)...)

	if len(findings) > 0 {
		d.logger.Info("anomaly.detect.findings", "receipt_id", r.ID, "user_id", userID, "count", len(findings))
	}
	return findings
}

func (d *Detector) loadHistory(ctx context.Context, userID string, r *entity.Receipt) (history, error) {
	day := entity.DateOnly(r.TxDate)
	merchant := r.Merchant
	amount := r.Amount

	sameDay, err := d.receipts.Find(ctx, entity.ReceiptFilter{
		UserID:    userID,
		From:      &day,
		To:        &day,
		Merchant:  &merchant,
		Amount:    &amount,
		ExcludeID: r.ID,
		Limit:     sameDayLookup,
	})
	if err != nil {
		return history{}, fmt.Errorf("same-day lookup: %w", err)
	}

	weekFrom := day.AddDate(0, 0, -weekWindow)
	weekTo := day.AddDate(0, 0, weekWindow)
	week, err := d.receipts.Find(ctx, entity.ReceiptFilter{
		UserID:    userID,
		From:      &weekFrom,
		To:        &weekTo,
		Amount:    &amount,
		ExcludeID: r.ID,
		Limit:     weekLookup,
	})
	if err != nil {
		return history{}, fmt.Errorf("week lookup: %w", err)
	}

	m := entity.MonthOf(day)
	monthFrom, monthTo := m.Start(), m.End()
	month, err := d.receipts.Find(ctx, entity.ReceiptFilter{
		UserID:    userID,
		From:      &monthFrom,
		To:        &monthTo,
		ExcludeID: r.ID,
	})
	if err != nil {
		return history{}, fmt.Errorf("month lookup: %w", err)
	}

	return history{sameDay: sameDay, week: week, month: month}, nil
}

func ids(rs []*entity.Receipt) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID.String()
	}
	return out
}
