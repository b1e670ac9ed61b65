// Package ingest creates receipts from uploads, forwarded messages and
// directories of files, stores their originals and queues them for
// processing.
package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/relief-tracker/internal/async"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string    `json:"source_path,omitempty"`
	ReceiptID    string    `json:"receipt_id,omitempty"`
	StorageRef   string    `json:"storage_ref,omitempty"`
	Deduplicated bool      `json:"deduplicated"`
	HashHex      string    `json:"hash,omitempty"`
	FileExt      string    `json:"file_ext,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Err          string    `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// ReceiptStore is the part of the receipt repository ingestion writes to.
type ReceiptStore interface {
	Create(ctx context.Context, r *entity.Receipt) (*entity.Receipt, error)
	Find(ctx context.Context, f entity.ReceiptFilter) ([]*entity.Receipt, error)
}

// Enqueuer hands new receipts to the processing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}
