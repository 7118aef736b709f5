package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/common"
	"github.com/docuflow/invoice-extractor/internal/entity"
)

// NewPostgresPool opens a pgx connection pool and verifies connectivity.
func NewPostgresPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, common.DatabaseError("parse connection string", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, common.DatabaseError("create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, common.DatabaseError("ping database", err)
	}
	return pool, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS invoices (
	id               UUID PRIMARY KEY,
	invoice_number   TEXT NOT NULL,
	amount           DOUBLE PRECISION NOT NULL DEFAULT 0,
	party_name       TEXT NOT NULL,
	party_address    TEXT NOT NULL DEFAULT '',
	currency_code    CHAR(3) NOT NULL DEFAULT 'USD',
	status           TEXT NOT NULL,
	source_file_name TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_invoices_party_name ON invoices(lower(party_name));
CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);
CREATE INDEX IF NOT EXISTS idx_invoices_deleted_at ON invoices(deleted_at);

CREATE TABLE IF NOT EXISTS extractions (
	id               UUID PRIMARY KEY,
	invoice_id       UUID REFERENCES invoices(id),
	source_file_name TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ NOT NULL,
	status           TEXT NOT NULL,
	ocr_confidence   DOUBLE PRECISION,
	llm_confidence   DOUBLE PRECISION,
	engine_name      TEXT,
	ocr_text         TEXT,
	raw_payload      JSONB,
	error_message    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extractions_invoice_id ON extractions(invoice_id);
CREATE INDEX IF NOT EXISTS idx_extractions_status ON extractions(status);
`

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, postgresMigration); err != nil {
		return common.DatabaseError("run migration", err)
	}
	return nil
}

// PostgresInvoiceRepository implements InvoiceRepository on a pgx pool.
type PostgresInvoiceRepository struct {
	pool Pool
}

func NewPostgresInvoiceRepository(pool Pool) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{pool: pool}
}

const invoiceColumns = `id, invoice_number, amount, party_name, party_address, currency_code, status, source_file_name, created_at, updated_at, deleted_at`

func (r *PostgresInvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	now := time.Now().UTC()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := r.pool.Exec(ctx,
		`INSERT INTO invoices (id, invoice_number, amount, party_name, party_address, currency_code, status, source_file_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inv.ID, inv.InvoiceNumber, inv.Amount, inv.PartyName, inv.PartyAddress,
		inv.CurrencyCode, string(inv.Status), inv.SourceFileName, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return common.DatabaseError("insert invoice", err)
	}
	return nil
}

func (r *PostgresInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND deleted_at IS NULL`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.DatabaseError(fmt.Sprintf("invoice not found: %s", id), err)
		}
		return nil, common.DatabaseError("get invoice", err)
	}
	return inv, nil
}

func (r *PostgresInvoiceRepository) Replace(ctx context.Context, inv *entity.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices
		 SET invoice_number = $1, amount = $2, party_name = $3, party_address = $4,
		     currency_code = $5, status = $6, source_file_name = $7, updated_at = $8
		 WHERE id = $9 AND deleted_at IS NULL`,
		inv.InvoiceNumber, inv.Amount, inv.PartyName, inv.PartyAddress,
		inv.CurrencyCode, string(inv.Status), inv.SourceFileName, inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		return common.DatabaseError("update invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return common.DatabaseError(fmt.Sprintf("invoice not found: %s", inv.ID), pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresInvoiceRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return common.DatabaseError("soft delete invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return common.DatabaseError(fmt.Sprintf("invoice not found: %s", id), pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresInvoiceRepository) SearchByPartyName(ctx context.Context, fragment string) ([]entity.Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE deleted_at IS NULL AND party_name ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC`,
		fragment,
	)
	if err != nil {
		return nil, common.DatabaseError("search invoices", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (r *PostgresInvoiceRepository) List(ctx context.Context, limit, offset int) ([]entity.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE deleted_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, common.DatabaseError("list invoices", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.Amount, &inv.PartyName,
		&inv.PartyAddress, &inv.CurrencyCode, &status, &inv.SourceFileName,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt)
	if err != nil {
		return nil, err
	}
	inv.Status = constants.InvoiceStatus(status)
	return &inv, nil
}

func collectInvoices(rows pgx.Rows) ([]entity.Invoice, error) {
	var out []entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
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

// PostgresExtractionRepository implements ExtractionRepository on a pgx pool.
type PostgresExtractionRepository struct {
	pool Pool
}

func NewPostgresExtractionRepository(pool Pool) *PostgresExtractionRepository {
	return &PostgresExtractionRepository{pool: pool}
}

const extractionColumns = `id, invoice_id, source_file_name, started_at, status, ocr_confidence, llm_confidence, engine_name, ocr_text, raw_payload, error_message, created_at`

func (r *PostgresExtractionRepository) Create(ctx context.Context, ext *entity.Extraction) error {
	now := time.Now().UTC()
	if ext.ID == uuid.Nil {
		ext.ID = uuid.New()
	}
	if ext.StartedAt.IsZero() {
		ext.StartedAt = now
	}
	ext.CreatedAt = now

	_, err := r.pool.Exec(ctx,
		`INSERT INTO extractions (id, invoice_id, source_file_name, started_at, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ext.ID, ext.InvoiceID, ext.SourceFileName, ext.StartedAt, string(ext.Status), ext.CreatedAt,
	)
	if err != nil {
		return common.DatabaseError("insert extraction", err)
	}
	return nil
}

// Finalize records the run outcome. Only records still in PROCESSING state
// are updated, so a run cannot be finalized twice.
func (r *PostgresExtractionRepository) Finalize(ctx context.Context, ext *entity.Extraction) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE extractions
		 SET invoice_id = $1, status = $2, ocr_confidence = $3, llm_confidence = $4,
		     engine_name = $5, ocr_text = $6, raw_payload = $7, error_message = $8
		 WHERE id = $9 AND status = 'PROCESSING'`,
		ext.InvoiceID, string(ext.Status), ext.OCRConfidence, ext.LLMConfidence,
		ext.EngineName, ext.OCRText, ext.RawPayload, ext.ErrorMessage, ext.ID,
	)
	if err != nil {
		return common.DatabaseError("finalize extraction", err)
	}
	if tag.RowsAffected() == 0 {
		return common.DatabaseError(fmt.Sprintf("extraction not found or already finalized: %s", ext.ID), pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresExtractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Extraction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE id = $1`, id)
	ext, err := scanExtraction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.DatabaseError(fmt.Sprintf("extraction not found: %s", id), err)
		}
		return nil, common.DatabaseError("get extraction", err)
	}
	return ext, nil
}

func (r *PostgresExtractionRepository) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]entity.Extraction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE invoice_id = $1 ORDER BY started_at DESC`,
		invoiceID,
	)
	if err != nil {
		return nil, common.DatabaseError("list extractions", err)
	}
	defer rows.Close()

	var out []entity.Extraction
	for rows.Next() {
		ext, err := scanExtraction(rows)
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

func scanExtraction(row pgx.Row) (*entity.Extraction, error) {
	var ext entity.Extraction
	var status string
	err := row.Scan(&ext.ID, &ext.InvoiceID, &ext.SourceFileName, &ext.StartedAt,
		&status, &ext.OCRConfidence, &ext.LLMConfidence, &ext.EngineName,
		&ext.OCRText, &ext.RawPayload, &ext.ErrorMessage, &ext.CreatedAt)
	if err != nil {
		return nil, err
	}
	ext.Status = constants.ExtractionStatus(status)
	return &ext, nil
}
