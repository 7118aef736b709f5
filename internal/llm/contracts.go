package llm

import "context"

// InvoiceFields is the normalized shape we want from the model. Business
// fields are pointers: nil means the model did not find the value, which is
// never an error. Currency always carries a value, "USD" when underivable.
type InvoiceFields struct {
	InvoiceNumber *string  `json:"invoice_number,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	PartyName     *string  `json:"party_name,omitempty"`
	PartyAddress  *string  `json:"party_address,omitempty"`
	Currency      string   `json:"currency"`
	Confidence    float64  `json:"confidence"` // 0..1
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	// ExtractFields pulls structured invoice fields out of OCR text. The raw
	// model JSON is returned alongside for metadata storage.
	ExtractFields(ctx context.Context, ocrText string) (InvoiceFields, []byte, error)
	// Available reports whether the client is configured to make calls.
	Available() bool
	// Provider identifies the backing model provider.
	Provider() string
}
