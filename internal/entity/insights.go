package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

type InsightsSummary struct {
	TotalReceipts       int             `json:"total_receipts"`
	TotalSpent          decimal.Decimal `json:"total_spent"`
	TaxEligibleReceipts int             `json:"tax_eligible_receipts"`
	TaxEligibleAmount   decimal.Decimal `json:"tax_eligible_amount"`
	AveragePerReceipt   decimal.Decimal `json:"average_per_receipt"`
	HighestTransaction  decimal.Decimal `json:"highest_transaction"`
	LowestTransaction   decimal.Decimal `json:"lowest_transaction"`
}

type CategoryStats struct {
	Count       int             `json:"count"`
	Total       decimal.Decimal `json:"total"`
	TaxEligible decimal.Decimal `json:"tax_eligible"`
}

type TrendType string

const (
	TrendSpendingChange TrendType = "SPENDING_CHANGE"
	TrendCategorySpike  TrendType = "CATEGORY_SPIKE"
)

type Trend struct {
	Type       TrendType          `json:"type"`
	Direction  string             `json:"direction,omitempty"` // INCREASE | DECREASE
	Category   constants.Category `json:"category,omitempty"`
	Percentage string             `json:"percentage"` // one decimal place
	Message    string             `json:"message"`
}

type RecommendationType string

const (
	RecommendTaxOpportunity RecommendationType = "TAX_OPPORTUNITY"
	RecommendSpendingAlert  RecommendationType = "SPENDING_ALERT"
	RecommendCategorization RecommendationType = "CATEGORIZATION"
)

type Recommendation struct {
	Type     RecommendationType `json:"type"`
	Category constants.Category `json:"category,omitempty"`
	Amount   *decimal.Decimal   `json:"amount,omitempty"`
	Count    int                `json:"count,omitempty"`
	Message  string             `json:"message"`
}

type AlertType string

const (
	AlertAnomaly    AlertType = "ANOMALY"
	AlertProcessing AlertType = "PROCESSING"
)

type Alert struct {
	Type     AlertType          `json:"type"`
	Severity constants.Severity `json:"severity"`
	Count    int                `json:"count"`
	Message  string             `json:"message"`
}

// MonthlyInsights is the per (user, month) insights document.
type MonthlyInsights struct {
	UserID            string                               `json:"user_id"`
	Month             string                               `json:"month"` // YYYY-MM
	Summary           InsightsSummary                      `json:"summary"`
	CategoryBreakdown map[constants.Category]CategoryStats `json:"category_breakdown"`
	Trends            []Trend                              `json:"trends"`
	Recommendations   []Recommendation                     `json:"recommendations"`
	Alerts            []Alert                              `json:"alerts"`
	GeneratedAt       time.Time                            `json:"generated_at"`
}

// InsightsKey is the document key for a (user, month) insights record.
func InsightsKey(userID string, m Month) string {
	return userID + "_" + m.String()
}
