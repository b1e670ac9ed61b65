package llm

import "context"

// CategorizeRequest carries the parsed receipt fields the model sees.
type CategorizeRequest struct {
	Merchant          string
	Items             []string // item names only
	Amount            string   // decimal, RM
	FullText          string
	AllowedCategories []string
}

// CategoryResult is the normalized shape we want from the LLM.
type CategoryResult struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	TaxEligible bool    `json:"taxEligible"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// Categorizer is the interface the classifier depends on.
type Categorizer interface {
	Categorize(ctx context.Context, req CategorizeRequest) (CategoryResult, []byte /*rawJSON*/, error)
}
