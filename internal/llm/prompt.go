package llm

import "strings"

// The JSON keys below are a fixed contract with the hosted model; they must
// match the parser and the schema exactly.

// BuildSystemPrompt composes the system message with the output contract and
// strict-but-practical formatting rules.
func BuildSystemPrompt() string {
	parts := []string{
		"You are an invoice parser. Return ONLY a JSON object with exactly these keys:",
		"'invoice_number' (the invoice identifier as printed),",
		"'amount' (the total amount copied verbatim from the text, do not normalize or calculate),",
		"'party_name' (the billed party's name),",
		"'party_address' (the billed party's address),",
		"'currency' (3-letter ISO 4217 code when derivable),",
		"'confidence' (your own estimate of extraction quality, a number between 0 and 1).",
		"If a field is not present in the text, omit it or use null.",
		"Do not wrap the JSON in markdown or add commentary.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the OCR text, truncated to keep the request small.
func BuildUserPrompt(ocrText string) string {
	var b strings.Builder
	b.WriteString("Extract the invoice fields from this OCR text:\n\n")
	ocr := strings.TrimSpace(ocrText)
	if len(ocr) > 6000 {
		b.WriteString(ocr[:6000])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(ocr)
	}
	return b.String()
}

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. Used to sanity-check model output before the tolerant parse.
func BuildInvoiceJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"invoice_number": map[string]any{"type": []string{"string", "null"}},
			"amount":         map[string]any{"type": []string{"string", "number", "null"}},
			"party_name":     map[string]any{"type": []string{"string", "null"}},
			"party_address":  map[string]any{"type": []string{"string", "null"}},
			"currency":       map[string]any{"type": []string{"string", "null"}},
			"confidence":     map[string]any{"type": []string{"number", "null"}},
		},
	}
}
