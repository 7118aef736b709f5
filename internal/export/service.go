package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docuflow/invoice-extractor/internal/entity"
	"github.com/docuflow/invoice-extractor/internal/repository"
)

// Service is a tiny façade over the invoice repository that produces XLSX
// bytes for register exports.
type Service struct {
	invoices repository.InvoiceRepository
	logger   *slog.Logger
}

func NewService(invoices repository.InvoiceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoices, logger: logger}
}

// ExportInvoicesXLSX returns an XLSX workbook (as bytes) listing invoices.
// party filters by case-insensitive partial party-name match; empty party
// exports everything up to limit.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, party string, limit int) ([]byte, error) {
	start := time.Now()

	invoices, err := s.listInvoices(ctx, party, limit)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Invoice Number",
		"Party",
		"Party Address",
		"Amount",
		"Currency",
		"Status",
		"Source File",
		"Created",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, inv := range invoices {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, inv.InvoiceNumber)
		write(2, inv.PartyName)
		write(3, truncate(inv.PartyAddress, 140))
		write(4, inv.Amount)
		write(5, inv.CurrencyCode)
		write(6, string(inv.Status))
		write(7, inv.SourceFileName)
		write(8, inv.CreatedAt.Format("2006-01-02"))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 22) // number
	_ = f.SetColWidth(sheet, "B", "B", 28) // party
	_ = f.SetColWidth(sheet, "C", "C", 48) // address
	_ = f.SetColWidth(sheet, "D", "E", 14) // amount, currency
	_ = f.SetColWidth(sheet, "F", "F", 20) // status
	_ = f.SetColWidth(sheet, "G", "G", 40) // file
	_ = f.SetColWidth(sheet, "H", "H", 14) // date

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"party_filter", party,
		"rows", len(invoices),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) listInvoices(ctx context.Context, party string, limit int) ([]entity.Invoice, error) {
	if party != "" {
		return s.invoices.SearchByPartyName(ctx, party)
	}
	return s.invoices.List(ctx, limit, 0)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
