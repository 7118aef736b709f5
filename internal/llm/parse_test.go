package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields_RoundTrip(t *testing.T) {
	content := []byte(`{"invoice_number":"INV-42","amount":"1,234.56","party_name":"Acme","party_address":null,"currency":"usd","confidence":0.95}`)

	fields, err := ParseFields(content)
	require.NoError(t, err)

	require.NotNil(t, fields.InvoiceNumber)
	assert.Equal(t, "INV-42", *fields.InvoiceNumber)
	require.NotNil(t, fields.Amount)
	assert.InDelta(t, 1234.56, *fields.Amount, 1e-9)
	require.NotNil(t, fields.PartyName)
	assert.Equal(t, "Acme", *fields.PartyName)
	assert.Nil(t, fields.PartyAddress)
	assert.Equal(t, "USD", fields.Currency)
	assert.InDelta(t, 0.95, fields.Confidence, 1e-9)
}

func TestParseFields_AbsentVariants(t *testing.T) {
	content := []byte(`{"invoice_number":"  ","amount":null,"party_name":"null","party_address":"NULL"}`)

	fields, err := ParseFields(content)
	require.NoError(t, err)

	assert.Nil(t, fields.InvoiceNumber)
	assert.Nil(t, fields.Amount)
	assert.Nil(t, fields.PartyName)
	assert.Nil(t, fields.PartyAddress)
	assert.Equal(t, "USD", fields.Currency)
	assert.InDelta(t, DefaultConfidence, fields.Confidence, 1e-9)
}

func TestParseFields_ConfidenceOutOfRange(t *testing.T) {
	fields, err := ParseFields([]byte(`{"confidence":5.0}`))
	require.NoError(t, err)
	assert.InDelta(t, DefaultConfidence, fields.Confidence, 1e-9)

	fields, err = ParseFields([]byte(`{"confidence":-0.2}`))
	require.NoError(t, err)
	assert.InDelta(t, DefaultConfidence, fields.Confidence, 1e-9)

	fields, err = ParseFields([]byte(`{"confidence":"high"}`))
	require.NoError(t, err)
	assert.InDelta(t, DefaultConfidence, fields.Confidence, 1e-9)
}

func TestParseFields_NumericAmount(t *testing.T) {
	fields, err := ParseFields([]byte(`{"amount":99.5}`))
	require.NoError(t, err)
	require.NotNil(t, fields.Amount)
	assert.InDelta(t, 99.5, *fields.Amount, 1e-9)
}

func TestParseFields_NonJSON(t *testing.T) {
	_, err := ParseFields([]byte("I could not find an invoice in this text."))
	require.Error(t, err)
}

func TestSanitizeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"$250.00", f(250.00)},
		{"1,234.56", f(1234.56)},
		{"1.234,56", f(1234.56)},
		{"EUR 99", f(99)},
		{"12.000.000,99", f(12000000.99)},
		{"", nil},
		{"n/a", nil},
		{"free", nil},
	}
	for _, tc := range tests {
		got := SanitizeAmount(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.InDelta(t, *tc.want, *got, 1e-9, "input %q", tc.in)
	}
}

func f(v float64) *float64 { return &v }

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, StripCodeFences("  {\"a\":1}  "))
}
