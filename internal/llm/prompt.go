package llm

import (
	"strings"
)

// SystemPrompt is sent ahead of every categorization request.
const SystemPrompt = "You are a Malaysia tax categorization expert. Always respond with valid JSON."

// maxTextExcerpt bounds how much raw receipt text is forwarded to the model.
const maxTextExcerpt = 500

// categoryHints are short cues for each relief category, shown next to the enum.
var categoryHints = map[string]string{
	"Medical":   "hospitals, clinics, medicine",
	"Education": "schools, courses, tuition",
	"Lifestyle": "gym, fitness",
	"Books":     "books, journals, magazines",
	"Sports":    "sports equipment",
	"Gadget":    "computers, smartphones, tablets",
	"Internet":  "broadband, wifi",
	"Parenting": "childcare, nursery",
	"Insurance": "insurance premiums",
	"PRS":       "retirement schemes",
	"Others":    "non-eligible",
}

// BuildUserPrompt renders the receipt fields and the category menu.
func BuildUserPrompt(req CategorizeRequest) string {
	var b strings.Builder
	b.WriteString("You are an AI tax assistant for Malaysia tax relief categorization.\n\n")
	b.WriteString("Merchant: " + req.Merchant + "\n")
	b.WriteString("Items: " + strings.Join(req.Items, ", ") + "\n")
	b.WriteString("Amount: RM " + req.Amount + "\n")
	b.WriteString("Full Receipt Text: " + excerpt(req.FullText, maxTextExcerpt) + "\n\n")

	b.WriteString("Categorize this receipt into ONE of these Malaysia tax relief categories:\n")
	for _, c := range req.AllowedCategories {
		b.WriteString("- " + c)
		if h, ok := categoryHints[c]; ok {
			b.WriteString(" (" + h + ")")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRespond in JSON format:\n")
	b.WriteString("{\n")
	b.WriteString("  \"category\": \"category_name\",\n")
	b.WriteString("  \"confidence\": 0.95,\n")
	b.WriteString("  \"taxEligible\": true,\n")
	b.WriteString("  \"reasoning\": \"brief explanation\"\n")
	b.WriteString("}")
	return b.String()
}

// excerpt returns at most n runes of s.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
