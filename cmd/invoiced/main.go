package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/docuflow/invoice-extractor/internal/async"
	"github.com/docuflow/invoice-extractor/internal/common"
	"github.com/docuflow/invoice-extractor/internal/export"
	"github.com/docuflow/invoice-extractor/internal/filestore"
	"github.com/docuflow/invoice-extractor/internal/llm"
	"github.com/docuflow/invoice-extractor/internal/ocr"
	"github.com/docuflow/invoice-extractor/internal/pipeline"
	"github.com/docuflow/invoice-extractor/internal/progress"
	"github.com/docuflow/invoice-extractor/internal/repository"
	"github.com/docuflow/invoice-extractor/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPostgresPool(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repository.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	invoices := repository.NewPostgresInvoiceRepository(pool)
	extractions := repository.NewPostgresExtractionRepository(pool)

	files, err := filestore.NewDiskStore(cfg.Files.RootDir)
	if err != nil {
		logger.Error("failed to open file store", "error", err)
		os.Exit(1)
	}

	// OCR engines: tesseract is the baseline; the cloud engine joins the
	// registry with a higher priority when configured.
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
		logger.Warn("llm extractor not configured, running in degraded mode")
	}

	publishers := []progress.Publisher{progress.NewLogPublisher(logger)}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		publishers = append(publishers, progress.NewRedisPublisher(rdb, logger))
	}

	orch := pipeline.NewOrchestrator(registry, extractor, invoices, extractions,
		progress.NewMulti(publishers...), logger)
	queue := async.NewExtractionQueue(orch, logger,
		async.WithWorkers(cfg.Server.Workers),
		async.WithQueueSize(cfg.Server.QueueSize),
		async.WithProcessTimeout(cfg.Server.ProcessTimeout),
	)

	srv := server.New(cfg.Server.HTTPAddr, server.Deps{
		Queue:       queue,
		Files:       files,
		Invoices:    invoices,
		Extractions: extractions,
		Exporter:    export.NewService(invoices, logger),
		Logger:      logger,
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
