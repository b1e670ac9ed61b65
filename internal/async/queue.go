// Package async runs the receipt pipeline on a bounded pool of workers.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one receipt to be run through the pipeline.
type Job struct {
	ReceiptID   uuid.UUID
	Force       bool // rerun even if already processed
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
