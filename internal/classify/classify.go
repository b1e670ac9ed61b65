// Package classify assigns a Malaysian tax-relief category to a parsed receipt.
package classify

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
	"github.com/joseph-ayodele/relief-tracker/internal/llm"
)

// Input is what a classifier sees of a receipt.
type Input struct {
	Merchant string
	Items    []entity.LineItem
	Amount   decimal.Decimal
	FullText string
}

// Result is a category prediction. Category is always a known category.
type Result struct {
	Category    constants.Category
	Confidence  float64
	TaxEligible bool
	Reasoning   string
}

// Classifier never fails; every path ends in a usable Result.
type Classifier interface {
	Classify(ctx context.Context, in Input) Result
}

// New returns the model-backed classifier when a categorizer is configured,
// otherwise the keyword classifier.
func New(categorizer llm.Categorizer, logger *slog.Logger) Classifier {
	if categorizer == nil {
		return KeywordClassifier{}
	}
	return NewLLMClassifier(categorizer, logger)
}

func itemNames(items []entity.LineItem) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return names
}
