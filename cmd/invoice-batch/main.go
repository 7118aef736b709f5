// invoice-batch runs the extraction pipeline over every document in a
// directory and writes an XLSX register of the resulting invoices. It uses a
// local SQLite database so no server infrastructure is needed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/common"
	"github.com/docuflow/invoice-extractor/internal/export"
	"github.com/docuflow/invoice-extractor/internal/llm"
	"github.com/docuflow/invoice-extractor/internal/ocr"
	"github.com/docuflow/invoice-extractor/internal/pipeline"
	"github.com/docuflow/invoice-extractor/internal/progress"
	"github.com/docuflow/invoice-extractor/internal/repository"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem       = flag.Bool("inmem", false, "use an in-memory SQLite database")
		dbPath      = flag.String("db", "", "SQLite database path (defaults to <dir>/invoices.db)")
		dir         = flag.String("dir", "", "directory of documents to process (required)")
		out         = flag.String("out", "", "output XLSX path (defaults to parent directory)")
		concurrency = flag.Int("concurrency", 4, "number of documents processed in parallel")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoices.xlsx")
	}

	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)
	cfg := common.LoadConfig()

	dsn := *dbPath
	if *inmem {
		dsn = ":memory:"
	} else if dsn == "" {
		dsn = filepath.Join(*dir, "invoices.db")
	}

	ctx := context.Background()
	db, err := repository.NewSQLiteDB(dsn)
	if err != nil {
		printError("Error: opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := repository.MigrateSQLite(ctx, db); err != nil {
		printError("Error: migrating database: %v\n", err)
		os.Exit(1)
	}

	invoices := repository.NewSQLiteInvoiceRepository(db)
	extractions := repository.NewSQLiteExtractionRepository(db)

	registry := ocr.NewRegistry(ocr.NewTesseractEngine(ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.TesseractLang,
		TessdataDir: cfg.OCR.TessdataDir,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		Preprocess:  cfg.OCR.Preprocess,
	}, ocr.NewFitzRenderer(), logger))
	if cfg.OCR.CloudAPIKey != "" {
		registry.Register(ocr.NewMistralEngine(cfg.OCR.CloudAPIKey, cfg.OCR.CloudModel, logger))
	}

	extractor := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if !extractor.Available() {
		fmt.Println("Note: no LLM configured, invoices will carry default fields")
	}

	orch := pipeline.NewOrchestrator(registry, extractor, invoices, extractions,
		progress.NewLogPublisher(logger), logger)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		printError("Error: reading directory: %v\n", err)
		os.Exit(1)
	}

	var processed, failed, skipped int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	results := make(chan error, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		mimeType := constants.MimeForExt(filepath.Ext(name))
		if mimeType == "" {
			skipped++
			continue
		}
		path := filepath.Join(*dir, name)
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				results <- fmt.Errorf("%s: %w", name, err)
				return nil
			}
			if _, err := orch.Run(gctx, pipeline.Request{
				FileBytes: data,
				FileName:  name,
				MimeType:  mimeType,
			}); err != nil {
				results <- fmt.Errorf("%s: %w", name, err)
				return nil
			}
			results <- nil
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	for err := range results {
		if err != nil {
			failed++
			printError("failed: %v\n", err)
		} else {
			processed++
		}
	}

	data, err := export.NewService(invoices, logger).ExportInvoicesXLSX(ctx, "", 10000)
	if err != nil {
		printError("Error: exporting register: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		printError("Error: writing %s: %v\n", *out, err)
		os.Exit(1)
	}

	fmt.Printf("processed %d, failed %d, skipped %d\n", processed, failed, skipped)
	fmt.Printf("register written to %s\n", *out)
}
