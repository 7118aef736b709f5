package constants

// InvoiceStatus is the canonical status for rows in invoices.
type InvoiceStatus string

// Stable values (store these exact strings in DB).
const (
	InvoiceStatusProcessing InvoiceStatus = "PROCESSING"        // placeholder, pipeline still running
	InvoiceStatusExtracted  InvoiceStatus = "EXTRACTED"         // assembled from extraction output
	InvoiceStatusFailed     InvoiceStatus = "EXTRACTION_FAILED" // pipeline produced no usable fields
	InvoiceStatusPending    InvoiceStatus = "PENDING"           // awaiting downstream review
)

// ExtractionStatus is the canonical status for rows in extractions.
type ExtractionStatus string

const (
	ExtractionStatusProcessing ExtractionStatus = "PROCESSING" // created before any work starts
	ExtractionStatusCompleted  ExtractionStatus = "COMPLETED"  // full OCR + LLM success
	ExtractionStatusFailed     ExtractionStatus = "FAILED"     // terminal stage failure
	ExtractionStatusPartial    ExtractionStatus = "PARTIAL"    // degraded result (LLM unavailable)
)

// EventStatus is the status carried by a progress event.
type EventStatus string

const (
	EventStatusProcessing EventStatus = "PROCESSING"
	EventStatusSuccess    EventStatus = "SUCCESS"
	EventStatusFailed     EventStatus = "FAILED"
)
