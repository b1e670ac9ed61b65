package llm

// BuildCategoryJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We use it locally to validate the model's reply before trusting it.
func BuildCategoryJSONSchema(allowedCategories []string) map[string]any {
	props := map[string]any{
		"category":    map[string]any{"type": "string", "minLength": 1},
		"confidence":  map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		"taxEligible": map[string]any{"type": "boolean"},
		"reasoning":   map[string]any{"type": "string"},
	}

	// Constrain category if a taxonomy is provided.
	if len(allowedCategories) > 0 {
		props["category"] = map[string]any{
			"type": "string",
			"enum": allowedCategories,
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"category", "confidence", "taxEligible"},
	}
}
