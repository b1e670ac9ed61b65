package classify

import (
	"context"
	"math"
	"strings"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

const (
	noMatchConfidence    = 0.3
	baseMatchConfidence  = 0.6
	perMatchConfidence   = 0.1
	maxKeywordConfidence = 0.9
)

// KeywordReasoning marks results produced by the keyword table.
const KeywordReasoning = "Categorized using keyword matching"

// KeywordClassifier scores each category by how many of its keywords appear
// in the receipt. Ties go to the category listed first.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, in Input) Result {
	text := strings.ToLower(in.Merchant + " " + strings.Join(itemNames(in.Items), " ") + " " + in.FullText)

	best, bestScore := constants.Others, 0
	for _, d := range constants.Definitions() {
		score := 0
		for _, kw := range d.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = d.Name, score
		}
	}

	confidence := noMatchConfidence
	if bestScore > 0 {
		confidence = math.Min(baseMatchConfidence+float64(bestScore)*perMatchConfidence, maxKeywordConfidence)
		confidence = math.Round(confidence*100) / 100
	}

	return Result{
		Category:    best,
		Confidence:  confidence,
		TaxEligible: best != constants.Others,
		Reasoning:   KeywordReasoning,
	}
}
