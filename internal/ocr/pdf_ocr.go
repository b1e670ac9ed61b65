package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

// extractPDF prefers the embedded text layer and rasterizes the pages for
// tesseract only when that layer is empty.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	txt, pages, warn, err := e.pdfToText(ctx, path)
	if err == nil && strings.TrimSpace(strings.ReplaceAll(txt, "\f", "")) != "" {
		txt = Normalize(txt)
		return Result{
			Text:       txt,
			Pages:      pages,
			SourceType: constants.PDF,
			Method:     "pdf-text",
			Warnings:   warn,
			Confidence: heuristicConfidence(txt),
		}, nil
	}
	if err != nil {
		warn = append(warn, "pdftotext: "+err.Error())
	}

	e.logger.Debug("pdf has no text layer, rasterizing", "path", path)
	txt, pages, warn2, err := e.pdfToOCR(ctx, path)
	warn = append(warn, warn2...)
	if err != nil {
		return Result{SourceType: constants.PDF, Warnings: warn}, err
	}
	txt = Normalize(txt)
	return Result{
		Text:       txt,
		Pages:      pages,
		SourceType: constants.PDF,
		Method:     "pdf-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
		Confidence: heuristicConfidence(txt),
	}, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (string, int, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text := string(out)
	// form feed separates pages
	return text, 1 + strings.Count(strings.TrimRight(text, "\f"), "\f"), nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, int, []string, error) {
	tmpDir, err := os.MkdirTemp("", "rt-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var (
		b     strings.Builder
		warns []string
	)
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	return b.String(), len(matches), warns, nil
}
