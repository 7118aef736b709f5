// Package repository persists invoices and extraction metadata.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docuflow/invoice-extractor/internal/entity"
)

// Pool is the subset of pgxpool.Pool the repositories use. pgxmock's
// PgxPoolIface satisfies it, so stores can be tested without a database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// InvoiceRepository stores assembled invoices. Deletes are soft: rows keep
// their data and gain a deleted_at timestamp, and reads exclude them.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	Replace(ctx context.Context, inv *entity.Invoice) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	SearchByPartyName(ctx context.Context, fragment string) ([]entity.Invoice, error)
	List(ctx context.Context, limit, offset int) ([]entity.Invoice, error)
}

// ExtractionRepository stores per-run extraction metadata. A record is
// created in PROCESSING state when a run starts and finalized exactly once.
type ExtractionRepository interface {
	Create(ctx context.Context, ext *entity.Extraction) error
	Finalize(ctx context.Context, ext *entity.Extraction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Extraction, error)
	GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]entity.Extraction, error)
}
