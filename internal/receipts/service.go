// Package receipts serves receipt reads and the manual category override.
package receipts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	Find(ctx context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error)
	SetManualCategory(ctx context.Context, id uuid.UUID, c constants.Category) (*entity.Receipt, error)
}

type TaxCalculator interface {
	Calculate(ctx context.Context, userID string, year int) (*entity.TaxSummary, error)
}

// Service handles receipt business logic.
type Service struct {
	receipts Store
	tax      TaxCalculator
	logger   *slog.Logger
}

// NewService creates a new receipt service.
func NewService(receipts Store, tax TaxCalculator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		receipts: receipts,
		tax:      tax,
		logger:   logger,
	}
}

// ListReceiptsRequest represents receipt listing parameters. Dates are
// YYYY-MM-DD and inclusive; empty means unbounded.
type ListReceiptsRequest struct {
	UserID   string
	FromDate string
	ToDate   string
}

// ListReceipts returns a user's receipts ordered by transaction date.
func (s *Service) ListReceipts(ctx context.Context, req ListReceiptsRequest) ([]*entity.Receipt, error) {
	err := common.NewValidator().
		Field("userId", req.UserID, common.Required, common.MaxLength(128)).
		Field("from", req.FromDate, common.Date).
		Field("to", req.ToDate, common.Date).
		Err()
	if err != nil {
		s.logger.Error("invalid list receipts request", "user_id", req.UserID, "error", err)
		return nil, err
	}

	f := entity.ReceiptFilter{UserID: req.UserID}
	if req.FromDate != "" {
		from, _ := time.Parse(entity.DateLayout, req.FromDate)
		f.From = &from
	}
	if req.ToDate != "" {
		to, _ := time.Parse(entity.DateLayout, req.ToDate)
		f.To = &to
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, fmt.Errorf("%w: to date %s is before from date %s", common.ErrInvalidInput, req.ToDate, req.FromDate)
	}

	recs, err := s.receipts.Find(ctx, f)
	if err != nil {
		s.logger.Error("failed to list receipts", "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	s.logger.Info("receipts listed successfully", "user_id", req.UserID, "count", len(recs))
	return recs, nil
}

// GetReceipt fetches one receipt by its string id.
func (s *Service) GetReceipt(ctx context.Context, id string) (*entity.Receipt, error) {
	rid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.receipts.Get(ctx, rid)
}

// SetCategory stores a user override and recomputes the tax summary for the
// receipt's year. The override survives reprocessing.
func (s *Service) SetCategory(ctx context.Context, id, category string) (*entity.Receipt, error) {
	rid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	if err := common.NewValidator().Field("category", category, common.Required, common.Category).Err(); err != nil {
		return nil, err
	}
	cat, _ := constants.Canonicalize(category)

	rec, err := s.receipts.SetManualCategory(ctx, rid, cat)
	if err != nil {
		s.logger.Error("failed to set manual category", "receipt_id", rid, "category", cat, "error", err)
		return nil, fmt.Errorf("set category: %w", err)
	}
	s.logger.Info("receipts.category.set", "receipt_id", rid, "user_id", rec.UserID, "category", cat)

	// pending and failed receipts have no date yet and count towards no year
	if rec.Status() == constants.StatusProcessed && s.tax != nil {
		if _, err := s.tax.Calculate(ctx, rec.UserID, rec.TxDate.Year()); err != nil {
			return rec, fmt.Errorf("recalculate tax summary: %w", err)
		}
	}
	return rec, nil
}

// ParseID parses a receipt id, reporting malformed ids as invalid input.
func ParseID(id string) (uuid.UUID, error) {
	rid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: receipt id must be a UUID", common.ErrInvalidInput)
	}
	return rid, nil
}
