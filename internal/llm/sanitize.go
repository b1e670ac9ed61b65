package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

// NormalizeCategoryJSON makes a model reply friendlier to the strict schema:
//   - strips markdown code fences
//   - renames known synonyms (tax_eligible -> taxEligible)
//   - coerces string confidence / booleans
//   - canonicalizes the category name
//   - removes unknown keys
func NormalizeCategoryJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(StripCodeFence(raw), &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changed := make([]string, 0, 4)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changed = append(changed, from+"->"+to)
		}
	}
	renamed("tax_eligible", "taxEligible")
	renamed("taxeligible", "taxEligible")
	renamed("eligible", "taxEligible")
	renamed("reason", "reasoning")

	if v, ok := m["category"].(string); ok {
		if c, known := constants.Canonicalize(v); known && string(c) != v {
			m["category"] = string(c)
			changed = append(changed, "category")
		}
	}

	switch t := m["confidence"].(type) {
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(t), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if strings.HasSuffix(strings.TrimSpace(t), "%") || f > 1 {
				f /= 100
			}
			m["confidence"] = f
		} else {
			delete(m, "confidence")
		}
		changed = append(changed, "confidence")
	case float64:
		if t > 1 && t <= 100 {
			m["confidence"] = t / 100
			changed = append(changed, "confidence")
		}
	}

	if s, ok := m["taxEligible"].(string); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			m["taxEligible"] = b
		} else {
			delete(m, "taxEligible")
		}
		changed = append(changed, "taxEligible")
	}

	allowed := map[string]struct{}{"category": {}, "confidence": {}, "taxEligible": {}, "reasoning": {}}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.categorize.normalize_sanitize", "changed", changed)
	}
	return out, changed, nil
}

// StripCodeFence removes a surrounding ```json ... ``` block if present.
func StripCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}
