package insights

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

var (
	hundred            = decimal.NewFromInt(100)
	spendingChangeFlag = decimal.NewFromInt(20)
	categorySpikeFlag  = decimal.NewFromInt(50)
	dailySpendFlag     = decimal.NewFromInt(100)
)

const (
	opportunityMaxCount = 3
	lowConfidence       = 0.5
)

// Build assembles the insights document for month from that month's receipts.
// prev is the preceding month's document, or nil. now decides the
// day-of-month divisor for the current month.
func Build(userID string, month entity.Month, receipts []*entity.Receipt, prev *entity.MonthlyInsights, now time.Time) *entity.MonthlyInsights {
	summary := summarize(receipts)
	breakdown := breakdownByCategory(receipts)
	return &entity.MonthlyInsights{
		UserID:            userID,
		Month:             month.String(),
		Summary:           summary,
		CategoryBreakdown: breakdown,
		Trends:            trends(summary, breakdown, prev),
		Recommendations:   recommendations(receipts, summary, breakdown, month, now),
		Alerts:            alerts(receipts),
		GeneratedAt:       now.UTC(),
	}
}

func summarize(receipts []*entity.Receipt) entity.InsightsSummary {
	s := entity.InsightsSummary{
		TotalReceipts:     len(receipts),
		TotalSpent:        decimal.Zero,
		TaxEligibleAmount: decimal.Zero,
		AveragePerReceipt: decimal.Zero,
	}
	for i, r := range receipts {
		s.TotalSpent = s.TotalSpent.Add(r.Amount)
		if r.TaxEligible {
			s.TaxEligibleReceipts++
			s.TaxEligibleAmount = s.TaxEligibleAmount.Add(r.Amount)
		}
		if i == 0 || r.Amount.GreaterThan(s.HighestTransaction) {
			s.HighestTransaction = r.Amount
		}
		if i == 0 || r.Amount.LessThan(s.LowestTransaction) {
			s.LowestTransaction = r.Amount
		}
	}
	if len(receipts) > 0 {
		s.AveragePerReceipt = s.TotalSpent.DivRound(decimal.NewFromInt(int64(len(receipts))), 2)
	}
	return s
}

func breakdownByCategory(receipts []*entity.Receipt) map[constants.Category]entity.CategoryStats {
	out := make(map[constants.Category]entity.CategoryStats)
	for _, r := range receipts {
		c := r.EffectiveCategory()
		st, ok := out[c]
		if !ok {
			st = entity.CategoryStats{Total: decimal.Zero, TaxEligible: decimal.Zero}
		}
		st.Count++
		st.Total = st.Total.Add(r.Amount)
		if r.TaxEligible {
			st.TaxEligible = st.TaxEligible.Add(r.Amount)
		}
		out[c] = st
	}
	return out
}

// percentChange returns (cur - prev) / prev * 100. prev must be non-zero.
func percentChange(cur, prev decimal.Decimal) decimal.Decimal {
	return cur.Sub(prev).Mul(hundred).Div(prev)
}

func trends(summary entity.InsightsSummary, breakdown map[constants.Category]entity.CategoryStats, prev *entity.MonthlyInsights) []entity.Trend {
	out := make([]entity.Trend, 0)
	if prev == nil {
		return out
	}

	if !prev.Summary.TotalSpent.IsZero() {
		change := percentChange(summary.TotalSpent, prev.Summary.TotalSpent)
		if change.Abs().GreaterThan(spendingChangeFlag) {
			direction, verb := "INCREASE", "increased"
			if change.IsNegative() {
				direction, verb = "DECREASE", "decreased"
			}
			pct := change.Abs().StringFixed(1)
			out = append(out, entity.Trend{
				Type:       entity.TrendSpendingChange,
				Direction:  direction,
				Percentage: pct,
				Message:    fmt.Sprintf("Spending %s by %s%% compared to last month", verb, pct),
			})
		}
	}

	for _, c := range orderedCategories(breakdown) {
		before, ok := prev.CategoryBreakdown[c]
		if !ok || before.Total.IsZero() {
			continue
		}
		change := percentChange(breakdown[c].Total, before.Total)
		if !change.GreaterThan(categorySpikeFlag) {
			continue
		}
		pct := change.StringFixed(1)
		out = append(out, entity.Trend{
			Type:       entity.TrendCategorySpike,
			Category:   c,
			Percentage: pct,
			Message:    fmt.Sprintf("%s spending spiked by %s%%", c, pct),
		})
	}
	return out
}

func recommendations(receipts []*entity.Receipt, summary entity.InsightsSummary, breakdown map[constants.Category]entity.CategoryStats, month entity.Month, now time.Time) []entity.Recommendation {
	out := make([]entity.Recommendation, 0)

	for _, c := range orderedCategories(breakdown) {
		st := breakdown[c]
		if !st.TaxEligible.IsPositive() || st.Count >= opportunityMaxCount {
			continue
		}
		amount := st.TaxEligible
		out = append(out, entity.Recommendation{
			Type:     entity.RecommendTaxOpportunity,
			Category: c,
			Amount:   &amount,
			Message: fmt.Sprintf("You have RM %s in %s. Keep more receipts in this category to maximize tax relief.",
				amount.StringFixed(2), c),
		})
	}

	days := month.Days()
	if entity.MonthOf(now.UTC()) == month {
		days = now.UTC().Day()
	}
	perDay := summary.TotalSpent.Div(decimal.NewFromInt(int64(days)))
	if perDay.GreaterThan(dailySpendFlag) {
		rounded := perDay.Round(2)
		out = append(out, entity.Recommendation{
			Type:    entity.RecommendSpendingAlert,
			Amount:  &rounded,
			Message: fmt.Sprintf("You're spending an average of RM %s per day. Consider reviewing your expenses.", perDay.StringFixed(2)),
		})
	}

	needsReview := 0
	for _, r := range receipts {
		if r.PredictedCategory == "" || r.Confidence < lowConfidence {
			needsReview++
		}
	}
	if needsReview*10 > len(receipts)*3 {
		out = append(out, entity.Recommendation{
			Type:    entity.RecommendCategorization,
			Count:   needsReview,
			Message: fmt.Sprintf("%d receipts need manual categorization for better tax tracking.", needsReview),
		})
	}
	return out
}

func alerts(receipts []*entity.Receipt) []entity.Alert {
	out := make([]entity.Alert, 0)

	high, pending := 0, 0
	for _, r := range receipts {
		if r.HasSeverity(constants.SeverityHigh) {
			high++
		}
		if r.ProcessedAt == nil {
			pending++
		}
	}
	if high > 0 {
		out = append(out, entity.Alert{
			Type:     entity.AlertAnomaly,
			Severity: constants.SeverityHigh,
			Count:    high,
			Message:  fmt.Sprintf("%d receipt(s) have high-priority anomalies that need review", high),
		})
	}
	if pending > 0 {
		out = append(out, entity.Alert{
			Type:     entity.AlertProcessing,
			Severity: constants.SeverityMedium,
			Count:    pending,
			Message:  fmt.Sprintf("%d receipt(s) are still being processed", pending),
		})
	}
	return out
}

// orderedCategories lists breakdown keys in table order, then any others sorted.
func orderedCategories(breakdown map[constants.Category]entity.CategoryStats) []constants.Category {
	out := make([]constants.Category, 0, len(breakdown))
	for _, c := range constants.Categories() {
		if _, ok := breakdown[c]; ok {
			out = append(out, c)
		}
	}
	var extra []constants.Category
	for c := range breakdown {
		if !constants.IsKnown(c) {
			extra = append(extra, c)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
