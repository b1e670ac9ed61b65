package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/joseph-ayodele/relief-tracker/internal/app"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/parser"
)

type output struct {
	Path       string        `json:"path"`
	Method     string        `json:"method"`
	SourceType string        `json:"source_type"`
	Pages      int           `json:"pages"`
	Confidence float32       `json:"confidence"`
	Warnings   []string      `json:"warnings,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	Fields     parser.Fields `json:"fields"`
}

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Server.LogFormat, cfg.Server.LogLevel)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <receipt-file>")
		os.Exit(2)
	}
	path := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := app.NewOCR(cfg, logger).Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{
		Path:       path,
		Method:     res.Method,
		SourceType: res.SourceType,
		Pages:      res.Pages,
		Confidence: res.Confidence,
		Warnings:   res.Warnings,
		DurationMS: res.Duration.Milliseconds(),
		Fields:     parser.Parse(res.Text, time.Now()),
	}); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
