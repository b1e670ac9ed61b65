// Package extract is the text extraction boundary: storage reference in,
// plain text out.
package extract

import (
	"context"
	"time"
)

// TextExtractor turns the stored original of a receipt into plain text. Any
// failure wraps common.ErrUnreadableInput. Empty text is not a failure.
type TextExtractor interface {
	ExtractText(ctx context.Context, storageRef string) (TextResult, error)
}

type TextResult struct {
	Text       string
	Pages      int
	SourceType string // "PDF" | "IMAGE" | "TXT"
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "text"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}
