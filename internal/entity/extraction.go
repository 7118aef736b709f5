package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-extractor/constants"
)

// Extraction represents one extraction attempt for data transfer between
// layers. Its ID is generated at pipeline start and correlates all progress
// events for the attempt; the invoice link is attached only after the invoice
// row exists. Finalized exactly once.
type Extraction struct {
	ID             uuid.UUID                  `json:"id"`
	InvoiceID      *uuid.UUID                 `json:"invoice_id,omitempty"`
	SourceFileName string                     `json:"source_file_name"`
	StartedAt      time.Time                  `json:"started_at"`
	Status         constants.ExtractionStatus `json:"status"`
	OCRConfidence  *float64                   `json:"ocr_confidence,omitempty"`
	LLMConfidence  *float64                   `json:"llm_confidence,omitempty"`
	EngineName     *string                    `json:"engine_name,omitempty"`
	OCRText        *string                    `json:"ocr_text,omitempty"`
	RawPayload     json.RawMessage            `json:"raw_payload,omitempty"`
	ErrorMessage   *string                    `json:"error_message,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
}
