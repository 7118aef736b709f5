// Package invoice turns raw extraction output into validated domain records.
package invoice

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/entity"
	"github.com/docuflow/invoice-extractor/internal/llm"
)

// PlaceholderParty substitutes for a missing or junk party name.
const PlaceholderParty = "Unknown Client"

var (
	reCurrency    = regexp.MustCompile(`^[A-Za-z]{3}$`)
	reNonAlphaNum = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// FromExtractedFields builds a validated invoice from model output,
// substituting defaults for every missing or junk field. It never fails:
// field-level absence is a data condition, not an error.
func FromExtractedFields(fields llm.InvoiceFields, fileName string) entity.Invoice {
	now := time.Now().UTC()
	inv := entity.Invoice{
		ID:             uuid.New(),
		InvoiceNumber:  SyntheticNumber(fileName),
		Amount:         0,
		PartyName:      PlaceholderParty,
		CurrencyCode:   "USD",
		Status:         constants.InvoiceStatusExtracted,
		SourceFileName: fileName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if n := fields.InvoiceNumber; n != nil && acceptableText(*n, 3) {
		inv.InvoiceNumber = strings.TrimSpace(*n)
	}
	if a := fields.Amount; a != nil && *a > 0 {
		inv.Amount = *a
	}
	if p := fields.PartyName; p != nil && acceptableText(*p, 2) {
		inv.PartyName = strings.TrimSpace(*p)
	}
	if addr := fields.PartyAddress; addr != nil {
		inv.PartyAddress = strings.TrimSpace(*addr)
	}
	if cur := strings.ToUpper(strings.TrimSpace(fields.Currency)); reCurrency.MatchString(cur) {
		inv.CurrencyCode = cur
	}
	return inv
}

// NewPlaceholder creates the PROCESSING record persisted before the pipeline
// starts work on a document.
func NewPlaceholder(fileName string) entity.Invoice {
	now := time.Now().UTC()
	return entity.Invoice{
		ID:             uuid.New(),
		InvoiceNumber:  SyntheticNumber(fileName),
		PartyName:      PlaceholderParty,
		CurrencyCode:   "USD",
		Status:         constants.InvoiceStatusProcessing,
		SourceFileName: fileName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewFailed turns a PROCESSING placeholder into the terminal record for a
// document the pipeline could not extract anything usable from. The row
// identity is preserved so the placeholder can be replaced in place.
func NewFailed(placeholder entity.Invoice) entity.Invoice {
	placeholder.InvoiceNumber += "-FAILED"
	placeholder.Status = constants.InvoiceStatusFailed
	return placeholder
}

// SyntheticNumber derives a unique invoice number from the source file name:
// INV-<sanitized uppercased name fragment>-<8-char random suffix>.
func SyntheticNumber(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	fragment := strings.ToUpper(reNonAlphaNum.ReplaceAllString(base, ""))
	if len(fragment) > 12 {
		fragment = fragment[:12]
	}
	if fragment == "" {
		fragment = "DOC"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "INV-" + fragment + "-" + suffix
}

// acceptableText rejects blank, too-short, and junk sentinel values.
func acceptableText(s string, minLen int) bool {
	s = strings.TrimSpace(s)
	if len(s) < minLen {
		return false
	}
	switch strings.ToLower(s) {
	case "null", "unknown":
		return false
	}
	return true
}
