// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/docuflow/invoice-extractor/internal/async"
	"github.com/docuflow/invoice-extractor/internal/export"
	"github.com/docuflow/invoice-extractor/internal/filestore"
	"github.com/docuflow/invoice-extractor/internal/repository"
)

// Server wires handlers, middleware and graceful shutdown.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// Deps carries the collaborators the HTTP layer needs.
type Deps struct {
	Queue       *async.ExtractionQueue
	Files       filestore.FileStore
	Invoices    repository.InvoiceRepository
	Extractions repository.ExtractionRepository
	Exporter    *export.Service
	Logger      *slog.Logger
}

func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		queue:       deps.Queue,
		files:       deps.Files,
		invoices:    deps.Invoices,
		extractions: deps.Extractions,
		exporter:    deps.Exporter,
		logger:      logger,
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           newRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func newRouter(h *handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extractions", h.startExtraction)
		r.Get("/extractions/{extractionID}", h.getExtraction)

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.listInvoices)
			r.Get("/export", h.exportInvoices)
			r.Get("/{invoiceID}", h.getInvoice)
			r.Delete("/{invoiceID}", h.deleteInvoice)
			r.Get("/{invoiceID}/extraction", h.getInvoiceExtraction)
		})
	})

	return r
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http.listen", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
