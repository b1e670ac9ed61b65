package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b|\b20\d{2}[-/]\d{1,2}[-/]\d{1,2}\b`)
	reCurr   = regexp.MustCompile(`\b(rm|myr|sgd|usd)\b`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*\.\d{2}\b`)
)

// heuristicConfidence scores decoded text by the receipt artifacts it
// contains. It is logged, never used for routing.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2)
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	return min(score, 1)
}
