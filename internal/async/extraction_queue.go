// Package async runs extractions on a bounded worker pool so callers get a
// pending handle instead of blocking on OCR and LLM calls.
package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-extractor/internal/pipeline"
)

// Job pairs a queued request with the handle its caller is holding.
type Job struct {
	Handle  *pipeline.Handle
	Request pipeline.Request
}

type ExtractionQueue struct {
	orch    *pipeline.Orchestrator
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ExtractionQueue)

func WithWorkers(n int) Option {
	return func(q *ExtractionQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ExtractionQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ExtractionQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewExtractionQueue(orch *pipeline.Orchestrator, logger *slog.Logger, opts ...Option) *ExtractionQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ExtractionQueue{
		orch:    orch,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ExtractionQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					result, err := q.orch.Run(ctx, job.Request)
					cancel()
					job.Handle.Resolve(result, err)

					if err != nil {
						q.logger.Error("extraction failed", "worker_id", workerID, "extraction_key", job.Handle.ExtractionKey(), "error", err)
					} else {
						q.logger.Info("extraction finished", "worker_id", workerID, "extraction_key", job.Handle.ExtractionKey())
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a request and returns its pending handle. When the queue
// is full the call blocks, applying backpressure to the producer. A queue
// that is shutting down resolves the handle immediately with ErrShutdown.
func (q *ExtractionQueue) Enqueue(_ context.Context, req pipeline.Request) *pipeline.Handle {
	if req.ExtractionKey == uuid.Nil {
		req.ExtractionKey = uuid.New()
	}
	h := pipeline.NewHandle(req.ExtractionKey)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "file_name", req.FileName)
		h.Resolve(nil, ErrShutdown)
		return h
	}
	job := Job{Handle: h, Request: req}
	select {
	case q.ch <- job:
		q.logger.Info("queued extraction", "extraction_key", req.ExtractionKey, "file_name", req.FileName)
	default:
		q.logger.Warn("queue full, applying backpressure", "extraction_key", req.ExtractionKey)
		q.ch <- job
	}
	return h
}

// Shutdown stops intake and waits for in-flight extractions to drain or ctx
// to expire.
func (q *ExtractionQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
