// Package server exposes the receipt pipeline over HTTP with gin.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
	"github.com/joseph-ayodele/relief-tracker/internal/export"
	"github.com/joseph-ayodele/relief-tracker/internal/ingest"
	"github.com/joseph-ayodele/relief-tracker/internal/receipts"
)

type Ingestor interface {
	Upload(ctx context.Context, userID, filename string, data []byte) (ingest.IngestionResult, error)
	Forwarded(ctx context.Context, userID, filename string, data []byte) (ingest.IngestionResult, error)
	Register(ctx context.Context, userID, storageRef string, source constants.SourceChannel) (ingest.IngestionResult, error)
}

type Receipts interface {
	GetReceipt(ctx context.Context, id string) (*entity.Receipt, error)
	ListReceipts(ctx context.Context, req receipts.ListReceiptsRequest) ([]*entity.Receipt, error)
	SetCategory(ctx context.Context, id, category string) (*entity.Receipt, error)
}

type Processor interface {
	ProcessReceipt(ctx context.Context, id uuid.UUID, force bool) (*entity.Receipt, error)
}

type TaxSummaries interface {
	Get(ctx context.Context, userID string, year int) (*entity.TaxSummary, error)
	Calculate(ctx context.Context, userID string, year int) (*entity.TaxSummary, error)
}

type InsightsGenerator interface {
	Generate(ctx context.Context, userID string, month entity.Month) (*entity.MonthlyInsights, error)
}

type InsightsReader interface {
	GetInsights(ctx context.Context, userID string, month entity.Month) (*entity.MonthlyInsights, error)
}

type Exporter interface {
	ExportReceiptsCSV(ctx context.Context, userID string, w export.Window) ([]byte, error)
	ExportReceiptsXLSX(ctx context.Context, userID string, w export.Window) ([]byte, error)
}

// Deps are the services the HTTP API delegates to.
type Deps struct {
	Ingest   Ingestor
	Receipts Receipts
	Process  Processor
	Tax      TaxSummaries
	Insights InsightsGenerator
	Stored   InsightsReader
	Export   Exporter
	// Health pings backing stores; nil reports healthy.
	Health func(ctx context.Context) error
}

type Server struct {
	deps   Deps
	logger *slog.Logger
	router *gin.Engine
}

func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(logger))

	s := &Server{deps: deps, logger: logger, router: router}
	s.setupRoutes()
	return s
}

// Handler returns the router for use in an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router
	r.GET("/health", s.health)

	r.POST("/receipts", s.createReceipt)
	r.POST("/receipts/upload", s.uploadReceipt)
	r.POST("/webhooks/forwarded", s.forwardedReceipt)
	r.GET("/receipts/:id", s.getReceipt)
	r.POST("/receipts/:id/process", s.processReceipt)
	r.PUT("/receipts/:id/category", s.setCategory)

	users := r.Group("/users/:userId")
	users.GET("/receipts", s.listReceipts)
	users.GET("/tax/:year", s.getTaxSummary)
	users.POST("/tax/:year/recalculate", s.recalculateTax)
	users.GET("/insights/:month", s.getInsights)
	users.POST("/insights/:month", s.generateInsights)
	users.GET("/export.xlsx", s.exportXLSX)
	users.GET("/export.csv", s.exportCSV)
}
