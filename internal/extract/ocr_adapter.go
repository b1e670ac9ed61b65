package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/ocr"
	"github.com/joseph-ayodele/relief-tracker/internal/storage"
)

// OCR is the part of ocr.Extractor the adapter needs.
type OCR interface {
	Extract(ctx context.Context, path string) (ocr.Result, error)
}

// OCRAdapter fetches the original from storage and runs OCR over it.
type OCRAdapter struct {
	files     storage.Store
	extractor OCR
	logger    *slog.Logger
}

func NewOCRAdapter(files storage.Store, e OCR, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{files: files, extractor: e, logger: logger}
}

func (a *OCRAdapter) ExtractText(ctx context.Context, storageRef string) (TextResult, error) {
	path, cleanup, err := a.files.Fetch(ctx, storageRef)
	if err != nil {
		return TextResult{}, fmt.Errorf("%w: fetch %s: %w", common.ErrUnreadableInput, storageRef, err)
	}
	defer cleanup()

	r, err := a.extractor.Extract(ctx, path)
	if err != nil {
		a.logger.Warn("extract.text.failed", "storage_ref", storageRef, "error", err)
		return TextResult{Warnings: r.Warnings}, fmt.Errorf("%w: %w", common.ErrUnreadableInput, err)
	}
	return TextResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}, nil
}
