package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-extractor/constants"
)

// Invoice represents a persisted invoice record for data transfer between layers.
// Updates go through whole-record replacement, never per-field mutation, so the
// timestamps stay consistent.
type Invoice struct {
	ID             uuid.UUID               `json:"id"`
	InvoiceNumber  string                  `json:"invoice_number"`
	Amount         float64                 `json:"amount"`
	PartyName      string                  `json:"party_name"`
	PartyAddress   string                  `json:"party_address,omitempty"`
	CurrencyCode   string                  `json:"currency_code"`
	Status         constants.InvoiceStatus `json:"status"`
	SourceFileName string                  `json:"source_file_name"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	DeletedAt      *time.Time              `json:"deleted_at,omitempty"`
}
