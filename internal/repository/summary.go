package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

const (
	taxSummariesTable    = "tax_summaries"
	monthlyInsightsTable = "monthly_insights"
)

// SummaryRepository stores derived documents keyed by (user, period).
// Writes replace the whole document.
type SummaryRepository interface {
	GetTaxSummary(ctx context.Context, userID string, year int) (*entity.TaxSummary, error)
	PutTaxSummary(ctx context.Context, s *entity.TaxSummary) error
	GetInsights(ctx context.Context, userID string, month entity.Month) (*entity.MonthlyInsights, error)
	PutInsights(ctx context.Context, in *entity.MonthlyInsights) error
}

type summaryRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSummaryRepository(db *DB, logger *slog.Logger) SummaryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &summaryRepository{db: db, logger: logger}
}

func (r *summaryRepository) GetTaxSummary(ctx context.Context, userID string, year int) (*entity.TaxSummary, error) {
	var out entity.TaxSummary
	err := r.getDocument(ctx, taxSummariesTable, entsql.And(
		entsql.EQ("user_id", userID),
		entsql.EQ("year", year),
	), &out)
	if err != nil {
		return nil, fmt.Errorf("tax summary %s: %w", entity.TaxSummaryKey(userID, year), err)
	}
	return &out, nil
}

func (r *summaryRepository) PutTaxSummary(ctx context.Context, s *entity.TaxSummary) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode tax summary: %w", err)
	}
	query, args := entsql.Dialect(r.db.Dialect).
		Insert(taxSummariesTable).
		Columns("user_id", "year", "document", "updated_at").
		Values(s.UserID, s.Year, string(doc), formatTime(time.Now())).
		OnConflict(
			entsql.ConflictColumns("user_id", "year"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to store tax summary", "key", entity.TaxSummaryKey(s.UserID, s.Year), "error", err)
		return fmt.Errorf("%w: put tax summary: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *summaryRepository) GetInsights(ctx context.Context, userID string, month entity.Month) (*entity.MonthlyInsights, error) {
	var out entity.MonthlyInsights
	err := r.getDocument(ctx, monthlyInsightsTable, entsql.And(
		entsql.EQ("user_id", userID),
		entsql.EQ("month", month.String()),
	), &out)
	if err != nil {
		return nil, fmt.Errorf("insights %s: %w", entity.InsightsKey(userID, month), err)
	}
	return &out, nil
}

func (r *summaryRepository) PutInsights(ctx context.Context, in *entity.MonthlyInsights) error {
	doc, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	query, args := entsql.Dialect(r.db.Dialect).
		Insert(monthlyInsightsTable).
		Columns("user_id", "month", "document", "updated_at").
		Values(in.UserID, in.Month, string(doc), formatTime(time.Now())).
		OnConflict(
			entsql.ConflictColumns("user_id", "month"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to store insights", "user_id", in.UserID, "month", in.Month, "error", err)
		return fmt.Errorf("%w: put insights: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *summaryRepository) getDocument(ctx context.Context, table string, where *entsql.Predicate, dst any) error {
	d := entsql.Dialect(r.db.Dialect)
	query, args := d.Select("document").
		From(d.Table(table)).
		Where(where).
		Query()

	var doc string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if err := json.Unmarshal([]byte(doc), dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
