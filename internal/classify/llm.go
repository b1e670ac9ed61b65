package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/llm"
)

// LLMClassifier asks a language model first and falls back to keywords on
// any failure: transport, malformed reply, or an unknown category.
type LLMClassifier struct {
	categorizer llm.Categorizer
	fallback    Classifier
	logger      *slog.Logger
}

func NewLLMClassifier(categorizer llm.Categorizer, logger *slog.Logger) *LLMClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{
		categorizer: categorizer,
		fallback:    KeywordClassifier{},
		logger:      logger,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, in Input) Result {
	res, err := c.categorize(ctx, in)
	if err != nil {
		c.logger.Warn("classify.llm_fallback", "merchant", in.Merchant, "error", err)
		return c.fallback.Classify(ctx, in)
	}
	return res
}

func (c *LLMClassifier) categorize(ctx context.Context, in Input) (Result, error) {
	out, _, err := c.categorizer.Categorize(ctx, llm.CategorizeRequest{
		Merchant:          in.Merchant,
		Items:             itemNames(in.Items),
		Amount:            in.Amount.StringFixed(2),
		FullText:          in.FullText,
		AllowedCategories: constants.AsStringSlice(),
	})
	if err != nil {
		return Result{}, err
	}

	cat, ok := constants.Canonicalize(out.Category)
	if !ok {
		return Result{}, fmt.Errorf("unknown category %q", out.Category)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return Result{}, fmt.Errorf("confidence %v out of range", out.Confidence)
	}

	return Result{
		Category:    cat,
		Confidence:  out.Confidence,
		TaxEligible: out.TaxEligible && cat != constants.Others,
		Reasoning:   out.Reasoning,
	}, nil
}
