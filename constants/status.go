package constants

// ProcessingStatus is derived from a receipt's processed timestamp and error.
type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "PENDING"   // not yet run through the pipeline
	StatusProcessed ProcessingStatus = "PROCESSED" // fields, category and findings stored
	StatusFailed    ProcessingStatus = "FAILED"    // error recorded, processed_at set
)

// SourceChannel records how a receipt entered the system.
type SourceChannel string

const (
	SourceUpload    SourceChannel = "UPLOAD"
	SourceForwarded SourceChannel = "FORWARDED"
)

// ParseSourceChannel defaults to SourceUpload for unknown values.
func ParseSourceChannel(s string) SourceChannel {
	if SourceChannel(s) == SourceForwarded {
		return SourceForwarded
	}
	return SourceUpload
}

// PaymentMethods is the priority order used when scanning receipt text.
var PaymentMethods = []string{"CASH", "CARD", "CREDIT", "DEBIT", "VISA", "MASTERCARD", "ONLINE"}

const PaymentUnknown = "Unknown"
