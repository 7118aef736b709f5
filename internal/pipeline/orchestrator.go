// Package pipeline drives the OCR, LLM, assembly and persistence stages for
// one extraction request.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/common"
	"github.com/docuflow/invoice-extractor/internal/entity"
	"github.com/docuflow/invoice-extractor/internal/invoice"
	"github.com/docuflow/invoice-extractor/internal/llm"
	"github.com/docuflow/invoice-extractor/internal/ocr"
	"github.com/docuflow/invoice-extractor/internal/progress"
	"github.com/docuflow/invoice-extractor/internal/repository"
)

// Event names and progress percentages for each pipeline transition.
const (
	EventStarted   = "extraction.started"
	EventOCRDone   = "extraction.ocr_completed"
	EventLLMDone   = "extraction.llm_completed"
	EventPersisted = "extraction.persisted"
	EventCompleted = "extraction.completed"
	EventFailed    = "extraction.failed"

	progressStarted   = 0
	progressOCRDone   = 33
	progressLLMDone   = 66
	progressPersisted = 90
	progressCompleted = 100
)

// Request carries the raw document for one extraction run. ExtractionKey may
// be set by the caller to learn the correlation id before the run starts; when
// zero a key is generated.
type Request struct {
	FileBytes     []byte
	FileName      string
	MimeType      string
	ExtractionKey uuid.UUID
}

// Result is what a completed run yields.
type Result struct {
	Invoice    *entity.Invoice
	Extraction *entity.Extraction
}

// Orchestrator runs extraction requests sequentially through OCR, LLM field
// extraction, invoice assembly and persistence. Stages never overlap within
// one request; independent requests may run concurrently.
type Orchestrator struct {
	registry    *ocr.Registry
	extractor   llm.FieldExtractor
	invoices    repository.InvoiceRepository
	extractions repository.ExtractionRepository
	publisher   progress.Publisher
	logger      *slog.Logger
}

func NewOrchestrator(
	registry *ocr.Registry,
	extractor llm.FieldExtractor,
	invoices repository.InvoiceRepository,
	extractions repository.ExtractionRepository,
	publisher progress.Publisher,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = progress.NewLogPublisher(logger)
	}
	return &Orchestrator{
		registry:    registry,
		extractor:   extractor,
		invoices:    invoices,
		extractions: extractions,
		publisher:   publisher,
		logger:      logger,
	}
}

// Run executes the full pipeline for one request. It emits exactly one
// terminal event (EventCompleted or EventFailed) per extraction key. Stage
// failures are terminal; no retries happen here.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	key := req.ExtractionKey
	if key == uuid.Nil {
		key = uuid.New()
	}
	ext := &entity.Extraction{
		ID:             key,
		SourceFileName: req.FileName,
		StartedAt:      time.Now().UTC(),
		Status:         constants.ExtractionStatusProcessing,
	}
	if err := o.extractions.Create(ctx, ext); err != nil {
		o.logger.Error("pipeline.metadata.create_failed", "file_name", req.FileName, "error", err)
		return nil, err
	}

	// Every run gets an invoice row up front. On success the PROCESSING
	// placeholder is replaced by the assembled record; on failure it is
	// replaced by the EXTRACTION_FAILED record.
	placeholder := invoice.NewPlaceholder(req.FileName)
	if err := o.invoices.Create(ctx, &placeholder); err != nil {
		return nil, o.fail(ctx, ext, nil, err)
	}
	ext.InvoiceID = &placeholder.ID

	o.publish(ctx, ext.ID, progress.Event{
		Type:     EventStarted,
		Status:   constants.EventStatusProcessing,
		Progress: progressStarted,
		Message:  "extraction started",
		Metadata: map[string]any{"file_name": req.FileName, "mime_type": req.MimeType},
	})

	// OCR stage.
	engine, err := o.registry.Select(req.MimeType)
	if err != nil {
		return nil, o.fail(ctx, ext, &placeholder, err)
	}
	outcome, err := engine.Extract(ctx, req.FileBytes, req.FileName, req.MimeType)
	if err != nil {
		return nil, o.fail(ctx, ext, &placeholder, err)
	}
	engineName := outcome.Engine
	ext.EngineName = &engineName
	ext.OCRText = &outcome.Text
	ext.OCRConfidence = &outcome.Confidence

	o.publish(ctx, ext.ID, progress.Event{
		Type:     EventOCRDone,
		Status:   constants.EventStatusProcessing,
		Progress: progressOCRDone,
		Message:  "text recognition completed",
		Metadata: map[string]any{
			"engine":     outcome.Engine,
			"pages":      outcome.Pages,
			"confidence": outcome.Confidence,
			"elapsed_ms": outcome.Duration.Milliseconds(),
		},
	})

	// LLM stage. An unconfigured extractor degrades to a default-filled
	// invoice instead of failing the request.
	degraded := !o.extractor.Available()
	fields, rawPayload, err := o.extractor.ExtractFields(ctx, outcome.Text)
	if err != nil {
		return nil, o.fail(ctx, ext, &placeholder, err)
	}
	ext.LLMConfidence = &fields.Confidence
	if len(rawPayload) > 0 {
		ext.RawPayload = rawPayload
	}

	o.publish(ctx, ext.ID, progress.Event{
		Type:     EventLLMDone,
		Status:   constants.EventStatusProcessing,
		Progress: progressLLMDone,
		Message:  "field extraction completed",
		Metadata: llmPreview(fields, degraded),
	})

	// Assembly and persistence. The assembled record takes over the
	// placeholder's row.
	inv := invoice.FromExtractedFields(fields, req.FileName)
	inv.ID = placeholder.ID
	inv.CreatedAt = placeholder.CreatedAt
	if err := o.invoices.Replace(ctx, &inv); err != nil {
		return nil, o.fail(ctx, ext, &placeholder, err)
	}

	o.publish(ctx, ext.ID, progress.Event{
		Type:     EventPersisted,
		Status:   constants.EventStatusProcessing,
		Progress: progressPersisted,
		Message:  "invoice persisted",
		Metadata: map[string]any{"invoice_key": inv.ID.String()},
	})

	ext.Status = constants.ExtractionStatusCompleted
	if degraded {
		ext.Status = constants.ExtractionStatusPartial
	}
	if err := o.extractions.Finalize(ctx, ext); err != nil {
		return nil, o.fail(ctx, ext, &placeholder, err)
	}

	o.publish(ctx, ext.ID, progress.Event{
		Type:     EventCompleted,
		Status:   constants.EventStatusSuccess,
		Progress: progressCompleted,
		Message:  "extraction completed",
		Metadata: map[string]any{
			"invoice_key": inv.ID.String(),
			// LLM confidence models semantic correctness, so it stands in
			// for the run's overall confidence.
			"confidence": fields.Confidence,
		},
	})
	o.logger.Info("pipeline.completed",
		"extraction_key", ext.ID,
		"invoice_key", inv.ID,
		"status", ext.Status,
	)
	return &Result{Invoice: &inv, Extraction: ext}, nil
}

// fail marks the placeholder invoice EXTRACTION_FAILED, finalizes the
// metadata record and emits the single terminal FAILED event. The original
// error is returned for the caller. A nil placeholder means the run failed
// before an invoice row existed.
func (o *Orchestrator) fail(ctx context.Context, ext *entity.Extraction, placeholder *entity.Invoice, cause error) error {
	msg := common.ErrorMessage(cause)
	code := common.ErrorCode(cause)

	if placeholder != nil {
		failed := invoice.NewFailed(*placeholder)
		if err := o.invoices.Replace(ctx, &failed); err != nil {
			o.logger.Error("pipeline.invoice.mark_failed", "extraction_key", ext.ID, "error", err)
		}
	}

	ext.Status = constants.ExtractionStatusFailed
	ext.ErrorMessage = &msg
	if err := o.extractions.Finalize(ctx, ext); err != nil {
		o.logger.Error("pipeline.metadata.finalize_failed", "extraction_key", ext.ID, "error", err)
	}

	meta := map[string]any{}
	if code != "" {
		meta["error_code"] = code
	}
	o.publish(ctx, ext.ID, progress.Event{
		Type:     EventFailed,
		Status:   constants.EventStatusFailed,
		Progress: progressStarted,
		Message:  msg,
		Metadata: meta,
	})
	o.logger.Error("pipeline.failed", "extraction_key", ext.ID, "code", code, "error", cause)
	return cause
}

// publish delivers a progress event best-effort. Publish failures are logged
// and swallowed; they never fail an extraction.
func (o *Orchestrator) publish(ctx context.Context, key uuid.UUID, ev progress.Event) {
	ev.ExtractionKey = key
	ev.Timestamp = time.Now().UTC()
	if err := o.publisher.Publish(ctx, key, ev); err != nil {
		o.logger.Warn("pipeline.progress.publish_failed", "extraction_key", key, "type", ev.Type, "error", err)
	}
}

func llmPreview(fields llm.InvoiceFields, degraded bool) map[string]any {
	meta := map[string]any{
		"currency":   fields.Currency,
		"confidence": fields.Confidence,
		"degraded":   degraded,
	}
	if fields.InvoiceNumber != nil {
		meta["invoice_number"] = *fields.InvoiceNumber
	}
	if fields.Amount != nil {
		meta["amount"] = *fields.Amount
	}
	if fields.PartyName != nil {
		meta["party_name"] = *fields.PartyName
	}
	return meta
}
