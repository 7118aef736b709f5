package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/common"
	"github.com/docuflow/invoice-extractor/internal/entity"
)

// NewSQLiteDB opens a SQLite database at the given DSN and configures WAL
// mode. Use ":memory:" for an ephemeral store in batch runs.
func NewSQLiteDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.DatabaseError("open sqlite", err)
	}
	// Every pooled connection to ":memory:" would get its own private
	// database, so an in-memory store must stay on a single connection.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, common.DatabaseError(fmt.Sprintf("exec %s", pragma), err)
		}
	}
	return db, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS invoices (
	id               TEXT PRIMARY KEY,
	invoice_number   TEXT NOT NULL,
	amount           REAL NOT NULL DEFAULT 0,
	party_name       TEXT NOT NULL,
	party_address    TEXT NOT NULL DEFAULT '',
	currency_code    TEXT NOT NULL DEFAULT 'USD',
	status           TEXT NOT NULL,
	source_file_name TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	deleted_at       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_invoices_party_name ON invoices(party_name);

CREATE TABLE IF NOT EXISTS extractions (
	id               TEXT PRIMARY KEY,
	invoice_id       TEXT REFERENCES invoices(id),
	source_file_name TEXT NOT NULL DEFAULT '',
	started_at       DATETIME NOT NULL,
	status           TEXT NOT NULL,
	ocr_confidence   REAL,
	llm_confidence   REAL,
	engine_name      TEXT,
	ocr_text         TEXT,
	raw_payload      TEXT,
	error_message    TEXT,
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extractions_invoice_id ON extractions(invoice_id);
`

// MigrateSQLite creates the schema if it does not exist.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		return common.DatabaseError("run sqlite migration", err)
	}
	return nil
}

// SQLiteInvoiceRepository implements InvoiceRepository on database/sql.
type SQLiteInvoiceRepository struct {
	db *sql.DB
}

func NewSQLiteInvoiceRepository(db *sql.DB) *SQLiteInvoiceRepository {
	return &SQLiteInvoiceRepository{db: db}
}

func (r *SQLiteInvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	now := time.Now().UTC()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invoices (id, invoice_number, amount, party_name, party_address, currency_code, status, source_file_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID.String(), inv.InvoiceNumber, inv.Amount, inv.PartyName, inv.PartyAddress,
		inv.CurrencyCode, string(inv.Status), inv.SourceFileName, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return common.DatabaseError("insert invoice", err)
	}
	return nil
}

func (r *SQLiteInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, invoice_number, amount, party_name, party_address, currency_code, status, source_file_name, created_at, updated_at
		 FROM invoices WHERE id = ? AND deleted_at IS NULL`,
		id.String(),
	)
	inv, err := scanSQLiteInvoice(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.DatabaseError(fmt.Sprintf("invoice not found: %s", id), err)
		}
		return nil, common.DatabaseError("get invoice", err)
	}
	return inv, nil
}

func (r *SQLiteInvoiceRepository) Replace(ctx context.Context, inv *entity.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices
		 SET invoice_number = ?, amount = ?, party_name = ?, party_address = ?,
		     currency_code = ?, status = ?, source_file_name = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		inv.InvoiceNumber, inv.Amount, inv.PartyName, inv.PartyAddress,
		inv.CurrencyCode, string(inv.Status), inv.SourceFileName, inv.UpdatedAt, inv.ID.String(),
	)
	if err != nil {
		return common.DatabaseError("update invoice", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.DatabaseError(fmt.Sprintf("invoice not found: %s", inv.ID), sql.ErrNoRows)
	}
	return nil
}

func (r *SQLiteInvoiceRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), id.String(),
	)
	if err != nil {
		return common.DatabaseError("soft delete invoice", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.DatabaseError(fmt.Sprintf("invoice not found: %s", id), sql.ErrNoRows)
	}
	return nil
}

func (r *SQLiteInvoiceRepository) SearchByPartyName(ctx context.Context, fragment string) ([]entity.Invoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, invoice_number, amount, party_name, party_address, currency_code, status, source_file_name, created_at, updated_at
		 FROM invoices
		 WHERE deleted_at IS NULL AND lower(party_name) LIKE '%' || ? || '%'
		 ORDER BY created_at DESC`,
		strings.ToLower(fragment),
	)
	if err != nil {
		return nil, common.DatabaseError("search invoices", err)
	}
	defer rows.Close()
	return collectSQLiteInvoices(rows)
}

func (r *SQLiteInvoiceRepository) List(ctx context.Context, limit, offset int) ([]entity.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, invoice_number, amount, party_name, party_address, currency_code, status, source_file_name, created_at, updated_at
		 FROM invoices
		 WHERE deleted_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, common.DatabaseError("list invoices", err)
	}
	defer rows.Close()
	return collectSQLiteInvoices(rows)
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteInvoice(row sqlScanner) (*entity.Invoice, error) {
	var inv entity.Invoice
	var id, status string
	err := row.Scan(&id, &inv.InvoiceNumber, &inv.Amount, &inv.PartyName,
		&inv.PartyAddress, &inv.CurrencyCode, &status, &inv.SourceFileName,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	inv.Status = constants.InvoiceStatus(status)
	return &inv, nil
}

func collectSQLiteInvoices(rows *sql.Rows) ([]entity.Invoice, error) {
	var out []entity.Invoice
	for rows.Next() {
		inv, err := scanSQLiteInvoice(rows)
		if err != nil {
			return nil, common.DatabaseError("scan invoice", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("iterate invoices", err)
	}
	return out, nil
}

// SQLiteExtractionRepository implements ExtractionRepository on database/sql.
type SQLiteExtractionRepository struct {
	db *sql.DB
}

func NewSQLiteExtractionRepository(db *sql.DB) *SQLiteExtractionRepository {
	return &SQLiteExtractionRepository{db: db}
}

func (r *SQLiteExtractionRepository) Create(ctx context.Context, ext *entity.Extraction) error {
	now := time.Now().UTC()
	if ext.ID == uuid.Nil {
		ext.ID = uuid.New()
	}
	if ext.StartedAt.IsZero() {
		ext.StartedAt = now
	}
	ext.CreatedAt = now

	var invoiceID any
	if ext.InvoiceID != nil {
		invoiceID = ext.InvoiceID.String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extractions (id, invoice_id, source_file_name, started_at, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ext.ID.String(), invoiceID, ext.SourceFileName, ext.StartedAt, string(ext.Status), ext.CreatedAt,
	)
	if err != nil {
		return common.DatabaseError("insert extraction", err)
	}
	return nil
}

func (r *SQLiteExtractionRepository) Finalize(ctx context.Context, ext *entity.Extraction) error {
	var invoiceID any
	if ext.InvoiceID != nil {
		invoiceID = ext.InvoiceID.String()
	}
	var rawPayload any
	if len(ext.RawPayload) > 0 {
		rawPayload = string(ext.RawPayload)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE extractions
		 SET invoice_id = ?, status = ?, ocr_confidence = ?, llm_confidence = ?,
		     engine_name = ?, ocr_text = ?, raw_payload = ?, error_message = ?
		 WHERE id = ? AND status = 'PROCESSING'`,
		invoiceID, string(ext.Status), ext.OCRConfidence, ext.LLMConfidence,
		ext.EngineName, ext.OCRText, rawPayload, ext.ErrorMessage, ext.ID.String(),
	)
	if err != nil {
		return common.DatabaseError("finalize extraction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.DatabaseError(fmt.Sprintf("extraction not found or already finalized: %s", ext.ID), sql.ErrNoRows)
	}
	return nil
}

func (r *SQLiteExtractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Extraction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, invoice_id, source_file_name, started_at, status, ocr_confidence, llm_confidence, engine_name, ocr_text, raw_payload, error_message, created_at
		 FROM extractions WHERE id = ?`,
		id.String(),
	)
	ext, err := scanSQLiteExtraction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.DatabaseError(fmt.Sprintf("extraction not found: %s", id), err)
		}
		return nil, common.DatabaseError("get extraction", err)
	}
	return ext, nil
}

func (r *SQLiteExtractionRepository) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]entity.Extraction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, invoice_id, source_file_name, started_at, status, ocr_confidence, llm_confidence, engine_name, ocr_text, raw_payload, error_message, created_at
		 FROM extractions WHERE invoice_id = ? ORDER BY started_at DESC`,
		invoiceID.String(),
	)
	if err != nil {
		return nil, common.DatabaseError("list extractions", err)
	}
	defer rows.Close()

	var out []entity.Extraction
	for rows.Next() {
		ext, err := scanSQLiteExtraction(rows)
		if err != nil {
			return nil, common.DatabaseError("scan extraction", err)
		}
		out = append(out, *ext)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("iterate extractions", err)
	}
	return out, nil
}

func scanSQLiteExtraction(row sqlScanner) (*entity.Extraction, error) {
	var ext entity.Extraction
	var id, status string
	var invoiceID, engineName, ocrText, rawPayload, errorMessage sql.NullString
	var ocrConf, llmConf sql.NullFloat64
	err := row.Scan(&id, &invoiceID, &ext.SourceFileName, &ext.StartedAt,
		&status, &ocrConf, &llmConf, &engineName, &ocrText, &rawPayload,
		&errorMessage, &ext.CreatedAt)
	if err != nil {
		return nil, err
	}
	ext.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	if invoiceID.Valid {
		parsed, err := uuid.Parse(invoiceID.String)
		if err != nil {
			return nil, err
		}
		ext.InvoiceID = &parsed
	}
	ext.Status = constants.ExtractionStatus(status)
	if ocrConf.Valid {
		ext.OCRConfidence = &ocrConf.Float64
	}
	if llmConf.Valid {
		ext.LLMConfidence = &llmConf.Float64
	}
	if engineName.Valid {
		ext.EngineName = &engineName.String
	}
	if ocrText.Valid {
		ext.OCRText = &ocrText.String
	}
	if rawPayload.Valid {
		ext.RawPayload = []byte(rawPayload.String)
	}
	if errorMessage.Valid {
		ext.ErrorMessage = &errorMessage.String
	}
	return &ext, nil
}
