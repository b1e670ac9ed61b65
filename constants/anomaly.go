package constants

// AnomalyType tags a finding. Values are stored verbatim in receipt documents.
type AnomalyType string

const (
	AnomalyPossibleDuplicate   AnomalyType = "POSSIBLE_DUPLICATE"
	AnomalyRepeatedTransaction AnomalyType = "REPEATED_TRANSACTION"
	AnomalyUnusualAmount       AnomalyType = "UNUSUAL_AMOUNT"
	AnomalyRoundAmount         AnomalyType = "ROUND_AMOUNT"
	AnomalyZeroAmount          AnomalyType = "ZERO_AMOUNT"
	AnomalyHighValue           AnomalyType = "HIGH_VALUE"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)
