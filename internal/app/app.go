// Package app wires configuration into the service graph shared by the
// daemon and the command-line tools.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/relief-tracker/internal/anomaly"
	"github.com/joseph-ayodele/relief-tracker/internal/async"
	"github.com/joseph-ayodele/relief-tracker/internal/classify"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/export"
	"github.com/joseph-ayodele/relief-tracker/internal/extract"
	"github.com/joseph-ayodele/relief-tracker/internal/ingest"
	"github.com/joseph-ayodele/relief-tracker/internal/insights"
	"github.com/joseph-ayodele/relief-tracker/internal/llm"
	"github.com/joseph-ayodele/relief-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/relief-tracker/internal/ocr"
	"github.com/joseph-ayodele/relief-tracker/internal/pipeline"
	"github.com/joseph-ayodele/relief-tracker/internal/receipts"
	"github.com/joseph-ayodele/relief-tracker/internal/repository"
	"github.com/joseph-ayodele/relief-tracker/internal/server"
	"github.com/joseph-ayodele/relief-tracker/internal/storage"
	"github.com/joseph-ayodele/relief-tracker/internal/tax"
)

// Options select the database and processing mode.
type Options struct {
	InMem      bool   // private in-memory SQLite, discarded on Close
	SQLitePath string // SQLite file; overrides the configured database
	Async      bool   // start the processing queue and enqueue on ingest
}

type App struct {
	Config *common.Config
	DB     *repository.DB

	Receipts  repository.ReceiptRepository
	Summaries repository.SummaryRepository
	Files     *storage.Router
	OCR       *ocr.Extractor

	Processor  *pipeline.Processor
	Queue      *async.ProcessorQueue
	Ingest     *ingest.Service
	ReceiptSvc *receipts.Service
	Tax        *tax.Aggregator
	Insights   *insights.Generator
	Batch      *insights.Batch
	Export     *export.Service

	logger *slog.Logger
}

// Build opens and migrates the database and constructs every service.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openDB(ctx, cfg, opts, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		db.Close(logger)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	files, err := buildStorage(cfg, logger)
	if err != nil {
		db.Close(logger)
		return nil, err
	}

	a := &App{
		Config:    cfg,
		DB:        db,
		Receipts:  repository.NewReceiptRepository(db, logger),
		Summaries: repository.NewSummaryRepository(db, logger),
		Files:     files,
		OCR:       NewOCR(cfg, logger),
		logger:    logger,
	}

	var categorizer llm.Categorizer
	if cfg.HasLLM() {
		categorizer = NewCategorizer(cfg, logger)
		logger.Info("OpenAI client initialized", "model", cfg.LLM.Model)
	} else {
		logger.Warn("OpenAI API key not configured, using keyword classification")
	}

	a.Tax = tax.NewAggregator(a.Receipts, a.Summaries, logger)
	a.Processor = pipeline.NewProcessor(
		a.Receipts,
		extract.NewOCRAdapter(files, a.OCR, logger),
		classify.New(categorizer, logger),
		anomaly.NewDetector(a.Receipts, logger),
		a.Tax,
		logger,
	)

	var queue ingest.Enqueuer
	if opts.Async {
		a.Queue = async.NewProcessorQueue(a.Processor, logger,
			async.WithWorkers(cfg.Queue.Workers),
			async.WithQueueSize(cfg.Queue.Size),
			async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		)
		queue = a.Queue
	}

	a.Ingest = ingest.NewService(a.Receipts, files, queue, logger)
	a.ReceiptSvc = receipts.NewService(a.Receipts, a.Tax, logger)
	a.Insights = insights.NewGenerator(a.Receipts, a.Summaries, logger)
	a.Batch = insights.NewBatch(a.Receipts, a.Insights, cfg.Insights.Concurrency, logger)
	a.Export = export.NewService(a.Receipts, logger)
	return a, nil
}

// NewCategorizer builds the OpenAI client from the LLM section of cfg.
func NewCategorizer(cfg *common.Config, logger *slog.Logger) *openai.Client {
	return openai.NewClient(openai.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout,
		LenientOptional: cfg.LLM.Lenient,
	}, logger)
}

// NewOCR builds the extractor from the OCR section of cfg.
func NewOCR(cfg *common.Config, logger *slog.Logger) *ocr.Extractor {
	return ocr.NewExtractor(ocr.Config{
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		DPI:                 cfg.OCR.DPI,
		PSM:                 6,
		HeicConverter:       cfg.OCR.HeicConverter,
		ArtifactCacheDir:    cfg.OCR.ArtifactCacheDir,
		Preprocess:          cfg.OCR.Preprocess,
		EnableTSVConfidence: true,
	}, logger)
}

// Deps exposes the services to the HTTP layer.
func (a *App) Deps() server.Deps {
	return server.Deps{
		Ingest:   a.Ingest,
		Receipts: a.ReceiptSvc,
		Process:  a.Processor,
		Tax:      a.Tax,
		Insights: a.Insights,
		Stored:   a.Summaries,
		Export:   a.Export,
		Health: func(ctx context.Context) error {
			return repository.HealthCheck(ctx, a.DB, 0, a.logger)
		},
	}
}

// Close drains the queue, if any, and closes the database.
func (a *App) Close(ctx context.Context) {
	if a.Queue != nil {
		a.Queue.Shutdown(ctx)
	}
	a.DB.Close(a.logger)
}

func openDB(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*repository.DB, error) {
	var (
		db  *repository.DB
		err error
	)
	switch {
	case opts.InMem:
		db, err = repository.OpenSQLite(ctx, ":memory:", logger)
	case opts.SQLitePath != "":
		db, err = repository.OpenSQLite(ctx, opts.SQLitePath, logger)
	default:
		db, err = repository.Open(ctx, repository.Config{
			Driver:           cfg.Database.Driver,
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		db.Close(logger)
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func buildStorage(cfg *common.Config, logger *slog.Logger) (*storage.Router, error) {
	local, err := storage.NewLocal(cfg.Storage.LocalDir)
	if err != nil {
		return nil, err
	}
	var s3 *storage.S3Store
	if cfg.HasS3() {
		s3, err = storage.NewS3Store(storage.S3Config{
			Endpoint:        cfg.Storage.S3Endpoint,
			Region:          cfg.Storage.S3Region,
			Bucket:          cfg.Storage.S3Bucket,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			AccessKeySecret: cfg.Storage.S3SecretAccessKey,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		logger.Info("s3 storage enabled", "bucket", cfg.Storage.S3Bucket)
	}
	return storage.NewRouter(local, s3), nil
}
