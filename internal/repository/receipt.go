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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

const receiptsTable = "receipts"

var receiptColumns = []string{
	"id", "user_id", "source", "storage_ref", "content_hash",
	"merchant", "amount", "tx_date", "payment_method", "items", "full_text",
	"predicted_category", "manual_category", "confidence", "tax_eligible", "reasoning",
	"anomalies", "processed_at", "processing_error", "created_at", "updated_at",
}

type ReceiptRepository interface {
	Create(ctx context.Context, r *entity.Receipt) (*entity.Receipt, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	Find(ctx context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error)
	ApplyProcessing(ctx context.Context, id uuid.UUID, u entity.ProcessingUpdate) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	SetManualCategory(ctx context.Context, id uuid.UUID, c constants.Category) (*entity.Receipt, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*entity.Receipt, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

type receiptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{
		db:     db,
		logger: logger,
	}
}

func (r *receiptRepository) Create(ctx context.Context, rec *entity.Receipt) (*entity.Receipt, error) {
	out := *rec
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	now := time.Now().UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	if out.Items == nil {
		out.Items = []entity.LineItem{}
	}
	if out.Anomalies == nil {
		out.Anomalies = []entity.AnomalyFinding{}
	}

	items, err := json.Marshal(out.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	anomalies, err := json.Marshal(out.Anomalies)
	if err != nil {
		return nil, fmt.Errorf("encode anomalies: %w", err)
	}

	txDate := ""
	if !out.TxDate.IsZero() {
		txDate = out.TxDate.Format(entity.DateLayout)
	}

	query, args := entsql.Dialect(r.db.Dialect).
		Insert(receiptsTable).
		Columns(receiptColumns...).
		Values(
			out.ID.String(), out.UserID, string(out.Source), out.StorageRef, out.ContentHash,
			out.Merchant, out.Amount.StringFixed(2), txDate, out.PaymentMethod, string(items), out.FullText,
			nullCategory(out.PredictedCategory), nullCategory(out.ManualCategory), out.Confidence, out.TaxEligible, out.Reasoning,
			string(anomalies), nullTime(out.ProcessedAt), out.ProcessingError, formatTime(out.CreatedAt), formatTime(out.UpdatedAt),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create receipt", "user_id", out.UserID, "error", err)
		return nil, fmt.Errorf("%w: insert receipt: %v", common.ErrDatabase, err)
	}
	return &out, nil
}

func (r *receiptRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	d := entsql.Dialect(r.db.Dialect)
	query, args := d.Select(receiptColumns...).
		From(d.Table(receiptsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()

	rec, err := scanReceipt(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get receipt", "receipt_id", id, "error", err)
		return nil, fmt.Errorf("%w: get receipt: %v", common.ErrDatabase, err)
	}
	return rec, nil
}

// Find returns the user's receipts matching f, ordered by transaction date
// then creation time.
func (r *receiptRepository) Find(ctx context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error) {
	preds := []*entsql.Predicate{entsql.EQ("user_id", f.UserID)}
	if f.From != nil {
		preds = append(preds, entsql.GTE("tx_date", f.From.Format(entity.DateLayout)))
	}
	if f.To != nil {
		preds = append(preds, entsql.LTE("tx_date", f.To.Format(entity.DateLayout)))
	}
	if f.Merchant != nil {
		preds = append(preds, entsql.EQ("merchant", *f.Merchant))
	}
	if f.Amount != nil {
		preds = append(preds, entsql.EQ("amount", f.Amount.StringFixed(2)))
	}
	if f.ContentHash != "" {
		preds = append(preds, entsql.EQ("content_hash", f.ContentHash))
	}
	if f.TaxEligibleOnly {
		preds = append(preds, entsql.EQ("tax_eligible", true))
	}
	if f.ProcessedOnly {
		preds = append(preds, entsql.NotNull("processed_at"), entsql.EQ("processing_error", ""))
	}
	if f.PendingOnly {
		preds = append(preds, entsql.IsNull("processed_at"))
	}
	if f.CreatedFrom != nil {
		preds = append(preds, entsql.GTE("created_at", formatTime(*f.CreatedFrom)))
	}
	if f.CreatedBefore != nil {
		preds = append(preds, entsql.LT("created_at", formatTime(*f.CreatedBefore)))
	}
	if f.ExcludeID != uuid.Nil {
		preds = append(preds, entsql.NEQ("id", f.ExcludeID.String()))
	}

	d := entsql.Dialect(r.db.Dialect)
	sel := d.Select(receiptColumns...).
		From(d.Table(receiptsTable)).
		Where(entsql.And(preds...)).
		OrderBy("tx_date", "created_at")
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}

	recs, err := r.query(ctx, sel)
	if err != nil {
		r.logger.Error("failed to find receipts", "user_id", f.UserID, "error", err)
		return nil, err
	}
	return recs, nil
}

// ListRecent returns the user's newest receipts by creation time.
func (r *receiptRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*entity.Receipt, error) {
	d := entsql.Dialect(r.db.Dialect)
	sel := d.Select(receiptColumns...).
		From(d.Table(receiptsTable)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("created_at"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	return r.query(ctx, sel)
}

func (r *receiptRepository) ApplyProcessing(ctx context.Context, id uuid.UUID, u entity.ProcessingUpdate) error {
	items := u.Items
	if items == nil {
		items = []entity.LineItem{}
	}
	anomalies := u.Anomalies
	if anomalies == nil {
		anomalies = []entity.AnomalyFinding{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	anomaliesJSON, err := json.Marshal(anomalies)
	if err != nil {
		return fmt.Errorf("encode anomalies: %w", err)
	}

	query, args := entsql.Dialect(r.db.Dialect).
		Update(receiptsTable).
		Set("merchant", u.Merchant).
		Set("amount", u.Amount.StringFixed(2)).
		Set("tx_date", u.TxDate.Format(entity.DateLayout)).
		Set("payment_method", u.PaymentMethod).
		Set("items", string(itemsJSON)).
		Set("full_text", u.FullText).
		Set("predicted_category", string(u.PredictedCategory)).
		Set("confidence", u.Confidence).
		Set("tax_eligible", u.TaxEligible).
		Set("reasoning", u.Reasoning).
		Set("anomalies", string(anomaliesJSON)).
		Set("processed_at", formatTime(u.ProcessedAt)).
		Set("processing_error", "").
		Set("updated_at", formatTime(time.Now())).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.exec(ctx, id, "apply processing", query, args)
}

// MarkFailed records a failed run. The processed timestamp is set so the
// receipt is not picked up again automatically, and the receipt stops
// counting towards tax relief.
func (r *receiptRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	query, args := entsql.Dialect(r.db.Dialect).
		Update(receiptsTable).
		Set("processing_error", reason).
		Set("processed_at", formatTime(at)).
		Set("tax_eligible", false).
		Set("updated_at", formatTime(time.Now())).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.exec(ctx, id, "mark failed", query, args)
}

func (r *receiptRepository) SetManualCategory(ctx context.Context, id uuid.UUID, c constants.Category) (*entity.Receipt, error) {
	upd := entsql.Dialect(r.db.Dialect).
		Update(receiptsTable).
		Set("updated_at", formatTime(time.Now())).
		Where(entsql.EQ("id", id.String()))
	if c == "" {
		upd = upd.SetNull("manual_category")
	} else {
		upd = upd.Set("manual_category", string(c)).
			Set("tax_eligible", constants.Limit(c).IsPositive())
	}
	query, args := upd.Query()
	if err := r.exec(ctx, id, "set manual category", query, args); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *receiptRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	d := entsql.Dialect(r.db.Dialect)
	query, args := d.Select("user_id").
		Distinct().
		From(d.Table(receiptsTable)).
		OrderBy("user_id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan user: %v", common.ErrDatabase, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list users: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *receiptRepository) Count(ctx context.Context) (int, error) {
	d := entsql.Dialect(r.db.Dialect)
	query, args := d.Select().Count().From(d.Table(receiptsTable)).Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count receipts: %v", common.ErrDatabase, err)
	}
	return n, nil
}

func (r *receiptRepository) query(ctx context.Context, sel *entsql.Selector) ([]*entity.Receipt, error) {
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query receipts: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Receipt, 0)
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan receipt: %v", common.ErrDatabase, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query receipts: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *receiptRepository) exec(ctx context.Context, id uuid.UUID, op, query string, args []any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update receipt", "op", op, "receipt_id", id, "error", err)
		return fmt.Errorf("%w: %s: %v", common.ErrDatabase, op, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var (
		rec                          entity.Receipt
		id, source, txDate           string
		items, anomalies             string
		predicted, manual, processed sql.NullString
		created, updated             string
		amount                       decimal.Decimal
	)
	err := row.Scan(
		&id, &rec.UserID, &source, &rec.StorageRef, &rec.ContentHash,
		&rec.Merchant, &amount, &txDate, &rec.PaymentMethod, &items, &rec.FullText,
		&predicted, &manual, &rec.Confidence, &rec.TaxEligible, &rec.Reasoning,
		&anomalies, &processed, &rec.ProcessingError, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	rec.Source = constants.SourceChannel(source)
	rec.Amount = amount
	if txDate != "" {
		if rec.TxDate, err = time.Parse(entity.DateLayout, txDate); err != nil {
			return nil, fmt.Errorf("parse tx_date: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal([]byte(anomalies), &rec.Anomalies); err != nil {
		return nil, fmt.Errorf("decode anomalies: %w", err)
	}
	rec.PredictedCategory = constants.Category(predicted.String)
	rec.ManualCategory = constants.Category(manual.String)
	if processed.Valid && processed.String != "" {
		t, err := parseTime(processed.String)
		if err != nil {
			return nil, fmt.Errorf("parse processed_at: %w", err)
		}
		rec.ProcessedAt = &t
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullCategory(c constants.Category) any {
	if c == "" {
		return nil
	}
	return string(c)
}
