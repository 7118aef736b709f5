package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/async"
	"github.com/docuflow/invoice-extractor/internal/common"
	"github.com/docuflow/invoice-extractor/internal/export"
	"github.com/docuflow/invoice-extractor/internal/filestore"
	"github.com/docuflow/invoice-extractor/internal/pipeline"
	"github.com/docuflow/invoice-extractor/internal/repository"
)

const maxUploadBytes = 32 << 20 // 32 MiB

type handlers struct {
	queue       *async.ExtractionQueue
	files       filestore.FileStore
	invoices    repository.InvoiceRepository
	extractions repository.ExtractionRepository
	exporter    *export.Service
	logger      *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startExtraction accepts a multipart upload, stores the source document and
// queues the pipeline. Responds 202 with the extraction key so the caller can
// follow progress events before the run finishes.
func (h *handlers) startExtraction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, common.InvalidFileFormat("parse multipart payload", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, common.InvalidFileFormat("missing file field", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, common.InternalError("read upload", err))
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = constants.MimeForExt(filepath.Ext(header.Filename))
	}
	mimeType = constants.NormalizeMime(mimeType)
	if _, ok := constants.AllowedMimeTypes[mimeType]; !ok {
		writeError(w, common.UnsupportedFileType(fmt.Sprintf("unsupported content type %q", mimeType)))
		return
	}

	stored, err := h.files.Store(r.Context(), header.Filename, mimeType, data)
	if err != nil {
		writeError(w, err)
		return
	}

	handle := h.queue.Enqueue(r.Context(), pipeline.Request{
		FileBytes: data,
		FileName:  header.Filename,
		MimeType:  mimeType,
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"extraction_key": handle.ExtractionKey(),
		"file_id":        stored.ID,
		"status":         constants.ExtractionStatusProcessing,
	})
}

func (h *handlers) getExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "extractionID"))
	if err != nil {
		writeError(w, common.InvalidFileFormat("extraction id must be a UUID", err))
		return
	}
	ext, err := h.extractions.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ext)
}

func (h *handlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeError(w, common.InvalidFileFormat("invoice id must be a UUID", err))
		return
	}
	inv, err := h.invoices.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if party := q.Get("party"); party != "" {
		invoices, err := h.invoices.SearchByPartyName(r.Context(), party)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	invoices, err := h.invoices.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *handlers) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeError(w, common.InvalidFileFormat("invoice id must be a UUID", err))
		return
	}
	if err := h.invoices.SoftDelete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getInvoiceExtraction returns the extraction run behind an invoice. The
// relationship is 1:1 in practice; when history exists the latest run wins.
func (h *handlers) getInvoiceExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeError(w, common.InvalidFileFormat("invoice id must be a UUID", err))
		return
	}
	exts, err := h.extractions.GetByInvoiceID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(exts) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"code":    common.CodeDatabaseError,
			"message": fmt.Sprintf("no extraction found for invoice %s", id),
		})
		return
	}
	writeJSON(w, http.StatusOK, exts[0])
}

func (h *handlers) exportInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 1000
	}
	data, err := h.exporter.ExportInvoicesXLSX(r.Context(), q.Get("party"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps stable error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := common.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case common.CodeUnsupportedFileType:
		status = http.StatusUnsupportedMediaType
	case common.CodeInvalidFileFormat:
		status = http.StatusBadRequest
	case common.CodeLLMUnavailable, common.CodeLLMAPIError:
		status = http.StatusBadGateway
	case common.CodeLLMTimeout:
		status = http.StatusGatewayTimeout
	case common.CodeDatabaseError:
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": common.ErrorMessage(err),
	})
}
