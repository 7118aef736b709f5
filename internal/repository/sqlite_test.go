package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/entity"
)

func newSQLiteTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "invoices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, MigrateSQLite(context.Background(), db))
	return db
}

func TestNewSQLiteDB_InMemory(t *testing.T) {
	db, err := NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, MigrateSQLite(context.Background(), db))

	// the schema must survive a second statement on the pool
	_, err = db.Exec(`SELECT count(*) FROM invoices`)
	require.NoError(t, err)
}

func TestSQLiteInvoiceRepository_RoundTrip(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteInvoiceRepository(db)
	ctx := context.Background()

	inv := entity.Invoice{
		InvoiceNumber:  "INV-1001",
		Amount:         250.00,
		PartyName:      "Jane Roe",
		PartyAddress:   "1 Main St",
		CurrencyCode:   "USD",
		Status:         constants.InvoiceStatusExtracted,
		SourceFileName: "scan.png",
	}
	require.NoError(t, repo.Create(ctx, &inv))
	require.NotEqual(t, uuid.Nil, inv.ID)

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
	assert.InDelta(t, inv.Amount, got.Amount, 1e-9)
	assert.Equal(t, inv.PartyName, got.PartyName)
	assert.Equal(t, constants.InvoiceStatusExtracted, got.Status)

	got.Amount = 300.00
	got.Status = constants.InvoiceStatusPending
	require.NoError(t, repo.Replace(ctx, got))

	updated, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.InDelta(t, 300.00, updated.Amount, 1e-9)
	assert.Equal(t, constants.InvoiceStatusPending, updated.Status)
}

func TestSQLiteInvoiceRepository_SoftDeleteHidesRow(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteInvoiceRepository(db)
	ctx := context.Background()

	inv := entity.Invoice{InvoiceNumber: "INV-1", PartyName: "Acme", Status: constants.InvoiceStatusExtracted}
	require.NoError(t, repo.Create(ctx, &inv))
	require.NoError(t, repo.SoftDelete(ctx, inv.ID))

	_, err := repo.GetByID(ctx, inv.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	// the row is retained on disk, only hidden from reads
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM invoices WHERE id = ?`, inv.ID.String()).Scan(&n))
	assert.Equal(t, 1, n)

	err = repo.SoftDelete(ctx, inv.ID)
	require.Error(t, err, "second delete finds nothing")
}

func TestSQLiteInvoiceRepository_SearchIsCaseInsensitive(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteInvoiceRepository(db)
	ctx := context.Background()

	for _, party := range []string{"Acme Corp", "ACME West", "Globex"} {
		inv := entity.Invoice{InvoiceNumber: "INV", PartyName: party, Status: constants.InvoiceStatusExtracted}
		require.NoError(t, repo.Create(ctx, &inv))
	}

	out, err := repo.SearchByPartyName(ctx, "aCmE")
	require.NoError(t, err)
	assert.Len(t, out, 2)

	none, err := repo.SearchByPartyName(ctx, "initech")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteInvoiceRepository_ListPagination(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteInvoiceRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		inv := entity.Invoice{InvoiceNumber: "INV", PartyName: "P", Status: constants.InvoiceStatusExtracted}
		require.NoError(t, repo.Create(ctx, &inv))
	}

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := repo.List(ctx, 10, 4)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestSQLiteExtractionRepository_Lifecycle(t *testing.T) {
	db := newSQLiteTestDB(t)
	invoices := NewSQLiteInvoiceRepository(db)
	repo := NewSQLiteExtractionRepository(db)
	ctx := context.Background()

	inv := entity.Invoice{InvoiceNumber: "INV-1", PartyName: "Acme", Status: constants.InvoiceStatusExtracted}
	require.NoError(t, invoices.Create(ctx, &inv))

	ext := entity.Extraction{
		SourceFileName: "scan.png",
		Status:         constants.ExtractionStatusProcessing,
	}
	require.NoError(t, repo.Create(ctx, &ext))

	pending, err := repo.GetByID(ctx, ext.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ExtractionStatusProcessing, pending.Status)
	assert.Nil(t, pending.InvoiceID)
	assert.Nil(t, pending.OCRConfidence)

	conf := 0.7
	engine := "tesseract"
	text := "Invoice #1"
	ext.InvoiceID = &inv.ID
	ext.Status = constants.ExtractionStatusCompleted
	ext.OCRConfidence = &conf
	ext.LLMConfidence = &conf
	ext.EngineName = &engine
	ext.OCRText = &text
	ext.RawPayload = []byte(`{"invoice_number":"1"}`)
	require.NoError(t, repo.Finalize(ctx, &ext))

	done, err := repo.GetByID(ctx, ext.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ExtractionStatusCompleted, done.Status)
	require.NotNil(t, done.InvoiceID)
	assert.Equal(t, inv.ID, *done.InvoiceID)
	require.NotNil(t, done.OCRConfidence)
	assert.InDelta(t, 0.7, *done.OCRConfidence, 1e-9)
	assert.JSONEq(t, `{"invoice_number":"1"}`, string(done.RawPayload))

	// a record finalizes exactly once
	err = repo.Finalize(ctx, &ext)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	byInvoice, err := repo.GetByInvoiceID(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, byInvoice, 1)
	assert.Equal(t, ext.ID, byInvoice[0].ID)
}

func TestSQLiteExtractionRepository_CreateSetsStartedAt(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteExtractionRepository(db)

	ext := entity.Extraction{SourceFileName: "a.pdf", Status: constants.ExtractionStatusProcessing}
	before := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), &ext))
	assert.False(t, ext.StartedAt.Before(before.Add(-time.Second)))
}
