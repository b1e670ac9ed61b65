package llm

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildUserPrompt(t *testing.T) {
	p := BuildUserPrompt(CategorizeRequest{
		Merchant:          "MPH Bookstore",
		Items:             []string{"Novel", "Journal"},
		Amount:            "80.00",
		FullText:          strings.Repeat("x", 800),
		AllowedCategories: constants.AsStringSlice(),
	})

	assert.True(t, strings.HasPrefix(p, "You are an AI tax assistant for Malaysia tax relief categorization."))
	assert.Contains(t, p, "Merchant: MPH Bookstore\n")
	assert.Contains(t, p, "Items: Novel, Journal\n")
	assert.Contains(t, p, "Amount: RM 80.00\n")
	assert.Contains(t, p, "Full Receipt Text: "+strings.Repeat("x", 500)+"\n")
	assert.NotContains(t, p, strings.Repeat("x", 501))
	assert.Contains(t, p, "- Medical (hospitals, clinics, medicine)\n")
	assert.Contains(t, p, "- Others (non-eligible)\n")
	assert.Contains(t, p, `"taxEligible": true`)
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildCategoryJSONSchema(constants.AsStringSlice())

	require.NoError(t, ValidateJSONAgainstSchema(schema,
		[]byte(`{"category":"Books","confidence":0.8,"taxEligible":true,"reasoning":"bookstore"}`)))

	cases := map[string]string{
		"unknown category":   `{"category":"Food","confidence":0.8,"taxEligible":false}`,
		"confidence above 1": `{"category":"Books","confidence":1.5,"taxEligible":true}`,
		"missing eligible":   `{"category":"Books","confidence":0.8}`,
		"extra key":          `{"category":"Books","confidence":0.8,"taxEligible":true,"why":"x"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(doc)))
		})
	}
}

func TestNormalizeCategoryJSON(t *testing.T) {
	out, changed, err := NormalizeCategoryJSON(
		[]byte("```json\n{\"category\":\"gadgets\",\"confidence\":90,\"eligible\":\"yes-ish\",\"reason\":\"laptop\"}\n```"),
		quietLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, changed)
	assert.JSONEq(t, `{"category":"Gadget","confidence":0.9,"reasoning":"laptop"}`, string(out))
}

func TestNormalizeCategoryJSON_BadInput(t *testing.T) {
	_, _, err := NormalizeCategoryJSON([]byte("not json"), quietLogger())
	require.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(StripCodeFence([]byte("```json\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(StripCodeFence([]byte("  {\"a\":1}  "))))
}
