// Package export renders a user's processed receipts as CSV or XLSX.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ReceiptFinder interface {
	Find(ctx context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error)
}

// Service is a small façade over the receipt store that produces export bytes.
type Service struct {
	receipts ReceiptFinder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(receipts ReceiptFinder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receipts: receipts, logger: logger, now: time.Now}
}

// Window bounds an export. Year, when set, wins over From and To.
// If only From is provided -> From..today (inclusive).
// If only To is provided   -> beginning..To (inclusive).
// If nothing is provided   -> every processed receipt of the user.
type Window struct {
	Year int
	From *time.Time
	To   *time.Time
}

// YearWindow covers one calendar year.
func YearWindow(year int) Window {
	return Window{Year: year}
}

func (s *Service) load(ctx context.Context, userID string, w Window) ([]*entity.Receipt, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", common.ErrInvalidInput)
	}

	f := entity.ReceiptFilter{UserID: userID}
	switch {
	case w.Year != 0:
		from := time.Date(w.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(w.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
		f.From, f.To = &from, &to
	default:
		if w.From != nil {
			from := entity.DateOnly(*w.From)
			f.From = &from
			to := entity.DateOnly(s.now().UTC())
			f.To = &to
		}
		if w.To != nil {
			to := entity.DateOnly(*w.To)
			f.To = &to
		}
	}

	recs, err := s.receipts.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	// pending and failed receipts carry no fields worth exporting
	out := recs[:0]
	for _, r := range recs {
		if r.Status() == constants.StatusProcessed {
			out = append(out, r)
		}
	}
	return out, nil
}
