// Package pipeline runs one receipt through extraction, classification and
// anomaly detection and stores the result with a single update.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/classify"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
	"github.com/joseph-ayodele/relief-tracker/internal/extract"
	"github.com/joseph-ayodele/relief-tracker/internal/ocr"
	"github.com/joseph-ayodele/relief-tracker/internal/parser"
)

// ReceiptStore is the part of the receipt repository the pipeline uses.
type ReceiptStore interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	ApplyProcessing(ctx context.Context, id uuid.UUID, u entity.ProcessingUpdate) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
}

type AnomalyDetector interface {
	Detect(ctx context.Context, userID string, r *entity.Receipt) []entity.AnomalyFinding
}

type TaxCalculator interface {
	Calculate(ctx context.Context, userID string, year int) (*entity.TaxSummary, error)
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor coordinates text extraction, field parsing, classification and
// anomaly detection for one receipt.
type Processor struct {
	receipts   ReceiptStore
	text       extract.TextExtractor
	classifier classify.Classifier
	detector   AnomalyDetector
	tax        TaxCalculator
	now        func() time.Time
	logger     *slog.Logger
}

func NewProcessor(
	receipts ReceiptStore,
	text extract.TextExtractor,
	classifier classify.Classifier,
	detector AnomalyDetector,
	tax TaxCalculator,
	logger *slog.Logger,
	opts ...Option,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = classify.KeywordClassifier{}
	}
	p := &Processor{
		receipts:   receipts,
		text:       text,
		classifier: classifier,
		detector:   detector,
		tax:        tax,
		now:        time.Now,
		logger:     logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ExtractFields reads the stored original and parses it. The only failure
// is an unreadable input.
func (p *Processor) ExtractFields(ctx context.Context, storageRef string) (parser.Fields, error) {
	res, err := p.text.ExtractText(ctx, storageRef)
	if err != nil {
		return parser.Fields{}, err
	}
	fields := parser.Parse(res.Text, p.now().UTC())
	p.logger.Debug("pipeline.extract.ok",
		"storage_ref", storageRef,
		"method", res.Method,
		"ocr_confidence", res.Confidence,
		"merchant", fields.Merchant,
		"amount", fields.Amount.StringFixed(2),
		"date_found", fields.DateFound,
		"items", len(fields.Items),
	)
	return fields, nil
}

// ProcessReceipt runs the pipeline for one receipt. Receipts that already
// ran are returned untouched unless force is set. An extraction failure is
// recorded on the receipt and also returned. A failed tax recompute is
// returned alongside the stored receipt.
func (p *Processor) ProcessReceipt(ctx context.Context, id uuid.UUID, force bool) (*entity.Receipt, error) {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, p.logger)
	rec, err := p.receipts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status() != constants.StatusPending && !force {
		logger.Info("pipeline.process.skipped", "receipt_id", id, "status", rec.Status())
		return rec, nil
	}
	logger.Info("pipeline.process.start", "receipt_id", id, "user_id", rec.UserID, "force", force)

	if rec.ContentHash != "" {
		ctx = ocr.WithContentHash(ctx, rec.ContentHash)
	}
	fields, err := p.ExtractFields(ctx, rec.StorageRef)
	if err != nil {
		logger.Error("pipeline.process.extract_failed", "receipt_id", id, "error", err)
		if markErr := p.receipts.MarkFailed(ctx, id, err.Error(), p.now().UTC()); markErr != nil {
			return nil, fmt.Errorf("record failure for %s: %w (extraction: %v)", id, markErr, err)
		}
		// a failed rerun drops the receipt from the year it was counted in
		if rec.Status() == constants.StatusProcessed && !rec.TxDate.IsZero() {
			if taxErr := p.recalculate(ctx, rec, rec); taxErr != nil {
				return nil, fmt.Errorf("process receipt %s: %w (%v)", id, err, taxErr)
			}
		}
		return nil, fmt.Errorf("process receipt %s: %w", id, err)
	}

	result := p.classifier.Classify(ctx, classify.Input{
		Merchant: fields.Merchant,
		Items:    fields.Items,
		Amount:   fields.Amount,
		FullText: fields.FullText,
	})

	candidate := *rec
	candidate.Merchant = fields.Merchant
	candidate.Amount = fields.Amount
	candidate.TxDate = fields.Date
	candidate.PaymentMethod = fields.PaymentMethod
	candidate.Items = fields.Items
	candidate.FullText = fields.FullText
	candidate.PredictedCategory = result.Category
	candidate.Confidence = result.Confidence
	candidate.TaxEligible = result.TaxEligible
	anomalies := p.detector.Detect(ctx, rec.UserID, &candidate)

	update := entity.ProcessingUpdate{
		Merchant:          fields.Merchant,
		Amount:            fields.Amount,
		TxDate:            fields.Date,
		PaymentMethod:     fields.PaymentMethod,
		Items:             fields.Items,
		FullText:          fields.FullText,
		PredictedCategory: result.Category,
		Confidence:        result.Confidence,
		TaxEligible:       result.TaxEligible,
		Reasoning:         result.Reasoning,
		Anomalies:         anomalies,
		ProcessedAt:       p.now().UTC(),
	}
	if rec.ManualCategory != "" {
		// a user override outlives reprocessing
		update.TaxEligible = constants.Limit(rec.ManualCategory).IsPositive()
	}
	if err := p.receipts.ApplyProcessing(ctx, id, update); err != nil {
		return nil, fmt.Errorf("store processing result for %s: %w", id, err)
	}

	stored, err := p.receipts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline.process.ok",
		"receipt_id", id,
		"user_id", rec.UserID,
		"category", result.Category,
		"confidence", result.Confidence,
		"anomalies", len(anomalies),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return stored, p.recalculate(ctx, rec, stored)
}

// recalculate refreshes the tax summary for the receipt's year, and for the
// previous year too when reprocessing moved the date across years.
func (p *Processor) recalculate(ctx context.Context, before, after *entity.Receipt) error {
	if p.tax == nil {
		return nil
	}
	years := []int{after.TxDate.Year()}
	if before.ProcessedAt != nil && !before.TxDate.IsZero() && before.TxDate.Year() != after.TxDate.Year() {
		years = append(years, before.TxDate.Year())
	}
	for _, y := range years {
		if _, err := p.tax.Calculate(ctx, after.UserID, y); err != nil {
			p.logger.Error("pipeline.process.tax_failed", "receipt_id", after.ID, "year", y, "error", err)
			return fmt.Errorf("recalculate tax summary %s: %w", entity.TaxSummaryKey(after.UserID, y), err)
		}
	}
	return nil
}
