package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultConfidence substitutes for a missing or out-of-range model-reported
// confidence. The LLM path is higher-trust than the OCR heuristic because it
// scores semantic correctness, not character legibility.
const DefaultConfidence = 0.85

// ParseFields decodes a model response tolerantly. Field-level absence is
// never an error: missing keys, JSON nulls, blank strings and the literal
// "null" all map to an absent value. Only undecodable JSON fails.
func ParseFields(content []byte) (InvoiceFields, error) {
	var m map[string]any
	if err := json.Unmarshal(content, &m); err != nil {
		return InvoiceFields{}, err
	}

	out := InvoiceFields{
		InvoiceNumber: stringField(m, "invoice_number"),
		PartyName:     stringField(m, "party_name"),
		PartyAddress:  stringField(m, "party_address"),
		Amount:        amountField(m, "amount"),
		Currency:      "USD",
		Confidence:    confidenceField(m, "confidence"),
	}
	if cur := stringField(m, "currency"); cur != nil {
		out.Currency = strings.ToUpper(*cur)
	}
	return out, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or without a
// language tag, so fenced model output still parses.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{}") {
		s = s[i+1:] // drop a language tag like "json"
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// stringField returns the trimmed string at key, or nil when the field is
// missing, null, blank, or the literal "null".
func stringField(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// amountField accepts a number or a verbatim amount string and sanitizes it
// before numeric parsing.
func amountField(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		return SanitizeAmount(t)
	default:
		return nil
	}
}

// SanitizeAmount strips an amount string down to digits and a single decimal
// separator, then parses it. Returns nil when nothing numeric remains.
func SanitizeAmount(s string) *float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return nil
	}

	// The last separator is the decimal point; earlier ones are grouping.
	// Handles both "1,234.56" and "1.234,56".
	if last := strings.LastIndexAny(cleaned, ".,"); last >= 0 {
		head := strings.NewReplacer(".", "", ",", "").Replace(cleaned[:last])
		cleaned = head + "." + cleaned[last+1:]
	}

	if cleaned == "." || cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// confidenceField uses the model-reported confidence when it is a number
// within [0,1]; anything else falls back to DefaultConfidence.
func confidenceField(m map[string]any, key string) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return DefaultConfidence
	}
	f, ok := v.(float64)
	if !ok || f < 0 || f > 1 {
		return DefaultConfidence
	}
	return f
}
