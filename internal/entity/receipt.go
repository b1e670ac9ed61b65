package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

// DateLayout is the storage and wire format for transaction dates.
const DateLayout = "2006-01-02"

// LineItem is one priced line parsed from receipt text.
type LineItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Receipt represents one purchase event for data transfer between layers.
type Receipt struct {
	ID          uuid.UUID               `json:"id"`
	UserID      string                  `json:"user_id"`
	Source      constants.SourceChannel `json:"source"`
	StorageRef  string                  `json:"storage_ref"`
	ContentHash string                  `json:"content_hash,omitempty"`

	Merchant      string          `json:"merchant"`
	Amount        decimal.Decimal `json:"amount"`
	TxDate        time.Time       `json:"tx_date"`
	PaymentMethod string          `json:"payment_method"`
	Items         []LineItem      `json:"items"`
	FullText      string          `json:"full_text,omitempty"`

	PredictedCategory constants.Category `json:"predicted_category,omitempty"`
	ManualCategory    constants.Category `json:"manual_category,omitempty"`
	Confidence        float64            `json:"confidence"`
	TaxEligible       bool               `json:"tax_eligible"`
	Reasoning         string             `json:"reasoning,omitempty"`

	Anomalies []AnomalyFinding `json:"anomalies"`

	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `json:"processing_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveCategory is the user override if set, else the prediction, else Others.
func (r *Receipt) EffectiveCategory() constants.Category {
	if r.ManualCategory != "" {
		return r.ManualCategory
	}
	if r.PredictedCategory != "" {
		return r.PredictedCategory
	}
	return constants.Others
}

func (r *Receipt) Status() constants.ProcessingStatus {
	switch {
	case r.ProcessedAt == nil:
		return constants.StatusPending
	case r.ProcessingError != "":
		return constants.StatusFailed
	default:
		return constants.StatusProcessed
	}
}

// HasSeverity reports whether any finding carries severity s.
func (r *Receipt) HasSeverity(s constants.Severity) bool {
	for _, a := range r.Anomalies {
		if a.Severity == s {
			return true
		}
	}
	return false
}

// ProcessingUpdate is the single write applied by a successful pipeline run.
type ProcessingUpdate struct {
	Merchant          string
	Amount            decimal.Decimal
	TxDate            time.Time
	PaymentMethod     string
	Items             []LineItem
	FullText          string
	PredictedCategory constants.Category
	Confidence        float64
	TaxEligible       bool
	Reasoning         string
	Anomalies         []AnomalyFinding
	ProcessedAt       time.Time
}

// ReceiptFilter selects receipts for one user. Zero-valued fields do not filter.
// From and To are inclusive calendar dates.
type ReceiptFilter struct {
	UserID          string
	From            *time.Time
	To              *time.Time
	Merchant        *string
	Amount          *decimal.Decimal
	ContentHash     string
	TaxEligibleOnly bool
	ProcessedOnly   bool       // processed without error
	PendingOnly     bool       // never processed nor failed
	CreatedFrom     *time.Time // created at or after
	CreatedBefore   *time.Time // created strictly before
	ExcludeID       uuid.UUID
	Limit           int
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
