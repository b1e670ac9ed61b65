package entity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

// TaxSummary is the per (user, year) relief view. It is derived entirely
// from the user's eligible receipts in that year.
type TaxSummary struct {
	UserID           string                                 `json:"user_id"`
	Year             int                                    `json:"year"`
	CategoryTotals   map[constants.Category]decimal.Decimal `json:"category_totals"`
	ClaimableAmounts map[constants.Category]decimal.Decimal `json:"claimable_amounts"`
	TotalSpent       decimal.Decimal                        `json:"total_spent"`
	TotalClaimable   decimal.Decimal                        `json:"total_claimable"`
	ReceiptCount     int                                    `json:"receipt_count"`
}

// TaxSummaryKey is the document key for a (user, year) summary.
func TaxSummaryKey(userID string, year int) string {
	return fmt.Sprintf("%s_%d", userID, year)
}
