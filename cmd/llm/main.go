package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/relief-tracker/internal/app"
	"github.com/joseph-ayodele/relief-tracker/internal/classify"
	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/parser"
)

// llm runs the model classifier repeatedly over one receipt's text so the
// category and confidence can be checked for stability.
func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Server.LogFormat, cfg.Server.LogLevel)

	if len(os.Args) < 2 {
		logger.Error("usage: llm <receipt-file> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 5
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}
	if !cfg.HasLLM() {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := app.NewOCR(cfg, logger).Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}
	fields := parser.Parse(res.Text, time.Now())

	client := app.NewCategorizer(cfg, logger)
	classifier := classify.NewLLMClassifier(client, logger)
	in := classify.Input{
		Merchant: fields.Merchant,
		Items:    fields.Items,
		Amount:   fields.Amount,
		FullText: res.Text,
	}

	base := filepath.Base(path)
	counts := map[string]int{}
	for i := 1; i <= times; i++ {
		start := time.Now()
		out := classifier.Classify(ctx, in)
		counts[string(out.Category)]++
		logger.Info("classify.run.ok",
			"iter", i,
			"basename", base,
			"category", out.Category,
			"confidence", out.Confidence,
			"tax_eligible", out.TaxEligible,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		time.Sleep(750 * time.Millisecond)
	}

	logger.Info("done", "basename", base, "times", times, "categories", counts)
}
