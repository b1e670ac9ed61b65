package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/async"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
	"github.com/joseph-ayodele/relief-tracker/internal/storage"
)

// MaxFileSize caps a single receipt original.
const MaxFileSize = 20 << 20

// Service handles ingestion business logic.
type Service struct {
	receipts ReceiptStore
	files    storage.Store
	queue    Enqueuer
	logger   *slog.Logger
}

// NewService creates a new ingest service. queue may be nil, in which case
// receipts are created pending and left for an explicit process call.
func NewService(receipts ReceiptStore, files storage.Store, queue Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receipts: receipts, files: files, queue: queue, logger: logger}
}

// Upload stores an uploaded receipt and creates it with source UPLOAD. The
// same bytes uploaded twice by one user yield the existing receipt.
func (s *Service) Upload(ctx context.Context, userID, filename string, data []byte) (IngestionResult, error) {
	return s.ingestBytes(ctx, constants.SourceUpload, userID, filename, data)
}

// Forwarded ingests the bytes of a receipt forwarded through a messaging
// channel. The caller has already downloaded the media.
func (s *Service) Forwarded(ctx context.Context, userID, filename string, data []byte) (IngestionResult, error) {
	return s.ingestBytes(ctx, constants.SourceForwarded, userID, filename, data)
}

// Register creates a receipt for an original that is already in storage.
func (s *Service) Register(ctx context.Context, userID, storageRef string, source constants.SourceChannel) (IngestionResult, error) {
	err := common.NewValidator().
		Field("userId", userID, common.Required, common.MaxLength(128)).
		Field("storageRef", storageRef, common.Required, common.MaxLength(1024)).
		Err()
	if err != nil {
		return IngestionResult{}, err
	}
	ext := constants.NormalizeExt(filepath.Ext(storageRef))
	if !AllowedExt(ext) {
		return IngestionResult{}, fmt.Errorf("%w: unsupported or missing extension %q", common.ErrInvalidInput, ext)
	}
	return s.create(ctx, &entity.Receipt{
		UserID:     userID,
		Source:     source,
		StorageRef: storageRef,
	}, ext)
}

// IngestPath copies one local file into storage as an upload.
func (s *Service) IngestPath(ctx context.Context, userID, path string) (IngestionResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return IngestionResult{SourcePath: path}, fmt.Errorf("abs path: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return IngestionResult{SourcePath: abs}, fmt.Errorf("stat: %w", err)
	}
	if st.Size() > MaxFileSize {
		return IngestionResult{SourcePath: abs}, fmt.Errorf("%w: %s is larger than %d bytes", common.ErrInvalidInput, abs, MaxFileSize)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return IngestionResult{SourcePath: abs}, fmt.Errorf("read: %w", err)
	}
	res, err := s.ingestBytes(ctx, constants.SourceUpload, userID, filepath.Base(abs), data)
	res.SourcePath = abs
	return res, err
}

func (s *Service) ingestBytes(ctx context.Context, source constants.SourceChannel, userID, filename string, data []byte) (IngestionResult, error) {
	err := common.NewValidator().
		Field("userId", userID, common.Required, common.MaxLength(128)).
		Err()
	if err != nil {
		return IngestionResult{}, err
	}
	if len(data) == 0 {
		return IngestionResult{}, fmt.Errorf("%w: empty file", common.ErrInvalidInput)
	}
	if len(data) > MaxFileSize {
		return IngestionResult{}, fmt.Errorf("%w: file is larger than %d bytes", common.ErrInvalidInput, MaxFileSize)
	}

	ext := constants.NormalizeExt(filepath.Ext(filename))
	if ext == "" {
		// chat attachments often arrive without a name
		ext = constants.NormalizeExt(mimetype.Detect(data).Extension())
	}
	if !AllowedExt(ext) {
		return IngestionResult{}, fmt.Errorf("%w: unsupported or missing extension %q", common.ErrInvalidInput, ext)
	}

	sum := sha256.Sum256(data)
	hashHex := hex.EncodeToString(sum[:])

	existing, err := s.receipts.Find(ctx, entity.ReceiptFilter{UserID: userID, ContentHash: hashHex, Limit: 1})
	if err != nil {
		return IngestionResult{}, fmt.Errorf("check duplicate: %w", err)
	}
	if len(existing) > 0 {
		r := existing[0]
		s.logger.Info("ingest.dedup", "user_id", userID, "receipt_id", r.ID, "hash", hashHex)
		return IngestionResult{
			ReceiptID:    r.ID.String(),
			StorageRef:   r.StorageRef,
			Deduplicated: true,
			HashHex:      hashHex,
			FileExt:      ext,
			UploadedAt:   r.CreatedAt,
		}, nil
	}

	key := fmt.Sprintf("%s/%s.%s", safeSegment(userID), hashHex, ext)
	ref, err := s.files.Put(ctx, key, data)
	if err != nil {
		s.logger.Error("failed to store receipt file", "user_id", userID, "key", key, "error", err)
		return IngestionResult{}, fmt.Errorf("store file: %w", err)
	}

	return s.create(ctx, &entity.Receipt{
		UserID:      userID,
		Source:      source,
		StorageRef:  ref,
		ContentHash: hashHex,
	}, ext)
}

func (s *Service) create(ctx context.Context, r *entity.Receipt, ext string) (IngestionResult, error) {
	rec, err := s.receipts.Create(ctx, r)
	if err != nil {
		return IngestionResult{}, fmt.Errorf("create receipt: %w", err)
	}
	s.logger.Info("ingest.created",
		"user_id", rec.UserID,
		"receipt_id", rec.ID,
		"source", rec.Source,
		"storage_ref", rec.StorageRef,
	)

	if s.queue != nil {
		job := async.Job{ReceiptID: rec.ID, SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			// the receipt stays pending and can be processed on request
			s.logger.Warn("failed to enqueue receipt", "receipt_id", rec.ID, "error", err)
			if !errors.Is(err, async.ErrQueueClosed) && ctx.Err() == nil {
				return IngestionResult{}, fmt.Errorf("enqueue receipt: %w", err)
			}
		}
	}

	return IngestionResult{
		ReceiptID:  rec.ID.String(),
		StorageRef: rec.StorageRef,
		HashHex:    rec.ContentHash,
		FileExt:    ext,
		UploadedAt: rec.CreatedAt,
	}, nil
}

// safeSegment keeps user ids usable as one storage path segment.
func safeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, s)
}
