package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/relief-tracker/internal/llm"
)

// ErrNoChoices is returned when the completion carries no message.
var ErrNoChoices = errors.New("no choices in openai response")

// Categorize implements llm.Categorizer using text-only chat completions.
func (c *Client) Categorize(ctx context.Context, req llm.CategorizeRequest) (llm.CategoryResult, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.categorize.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"merchant", req.Merchant,
		"items", len(req.Items),
		"text_len", len(req.FullText),
		"allowed_categories", len(req.AllowedCategories),
	)

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildUserPrompt(req)},
		},
	})
	if err != nil {
		c.logger.Error("llm.categorize.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.CategoryResult{}, nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.categorize.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.CategoryResult{}, nil, ErrNoChoices
	}

	rawContent := llm.StripCodeFence([]byte(strings.TrimSpace(resp.Choices[0].Message.Content)))
	schema := llm.BuildCategoryJSONSchema(req.AllowedCategories)

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if !c.cfg.LenientOptional {
			c.logger.Error("llm.categorize.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.CategoryResult{}, rawContent, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, changed, sErr := llm.NormalizeCategoryJSON(rawContent, c.logger)
		if sErr != nil {
			c.logger.Error("llm.categorize.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.CategoryResult{}, rawContent, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.categorize.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.CategoryResult{}, rawContent, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("llm.categorize.lenient_sanitize_applied",
			"req_id", rid, "changed", changed,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out llm.CategoryResult
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.logger.Error("llm.categorize.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.CategoryResult{}, rawContent, fmt.Errorf("unmarshal category: %w", err)
	}

	c.logger.Info("llm.categorize.ok",
		"req_id", rid,
		"category", out.Category,
		"confidence", out.Confidence,
		"tax_eligible", out.TaxEligible,
		"tokens", resp.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}
