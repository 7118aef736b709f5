package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/entity"
)

type fixedInvoices struct {
	all      []entity.Invoice
	searched string
}

func (r *fixedInvoices) Create(context.Context, *entity.Invoice) error { return nil }
func (r *fixedInvoices) GetByID(context.Context, uuid.UUID) (*entity.Invoice, error) {
	return nil, nil
}
func (r *fixedInvoices) Replace(context.Context, *entity.Invoice) error { return nil }
func (r *fixedInvoices) SoftDelete(context.Context, uuid.UUID) error    { return nil }

func (r *fixedInvoices) SearchByPartyName(_ context.Context, fragment string) ([]entity.Invoice, error) {
	r.searched = fragment
	var out []entity.Invoice
	for _, inv := range r.all {
		if strings.Contains(strings.ToLower(inv.PartyName), strings.ToLower(fragment)) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fixedInvoices) List(context.Context, int, int) ([]entity.Invoice, error) {
	return r.all, nil
}

func testInvoice(number, party string, amount float64) entity.Invoice {
	return entity.Invoice{
		ID:             uuid.New(),
		InvoiceNumber:  number,
		Amount:         amount,
		PartyName:      party,
		CurrencyCode:   "USD",
		Status:         constants.InvoiceStatusExtracted,
		SourceFileName: "scan.pdf",
		CreatedAt:      time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestExportInvoicesXLSX(t *testing.T) {
	repo := &fixedInvoices{all: []entity.Invoice{
		testInvoice("INV-1", "Acme Corp", 100.50),
		testInvoice("INV-2", "Globex", 17),
	}}
	svc := NewService(repo, nil)

	data, err := svc.ExportInvoicesXLSX(context.Background(), "", 100)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Invoice Number", rows[0][0])
	assert.Equal(t, "Party", rows[0][1])

	assert.Equal(t, "INV-1", rows[1][0])
	assert.Equal(t, "Acme Corp", rows[1][1])
	assert.Equal(t, "100.5", rows[1][3])
	assert.Equal(t, "EXTRACTED", rows[1][5])
	assert.Equal(t, "2026-03-14", rows[1][7])

	assert.Equal(t, "Globex", rows[2][1])
}

func TestExportInvoicesXLSX_PartyFilter(t *testing.T) {
	repo := &fixedInvoices{all: []entity.Invoice{
		testInvoice("INV-1", "Acme Corp", 1),
		testInvoice("INV-2", "Globex", 2),
	}}
	svc := NewService(repo, nil)

	data, err := svc.ExportInvoicesXLSX(context.Background(), "acme", 100)
	require.NoError(t, err)
	assert.Equal(t, "acme", repo.searched)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme Corp", rows[1][1])
}

func TestExportInvoicesXLSX_Empty(t *testing.T) {
	svc := NewService(&fixedInvoices{}, nil)

	data, err := svc.ExportInvoicesXLSX(context.Background(), "", 10)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header row only")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "", truncate("", 5))
}
