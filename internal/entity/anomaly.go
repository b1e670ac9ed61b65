package entity

import "github.com/joseph-ayodele/relief-tracker/constants"

// AnomalyFinding is one detection result. It is always owned by its receipt.
type AnomalyFinding struct {
	Type       constants.AnomalyType `json:"type"`
	Severity   constants.Severity    `json:"severity"`
	Message    string                `json:"message"`
	Details    map[string]string     `json:"details,omitempty"`
	RelatedIDs []string              `json:"related_ids,omitempty"`
}
