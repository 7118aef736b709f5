// Package progress carries pipeline status out to external observers.
package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-extractor/constants"
)

// Event is a one-shot, fire-and-forget progress notification. Events for one
// extraction key are ordered by emission time; exactly one terminal event
// (SUCCESS at 100 or FAILED) is emitted per key.
type Event struct {
	Type          string                `json:"type"`
	ExtractionKey uuid.UUID             `json:"extraction_key"`
	Status        constants.EventStatus `json:"status"`
	Progress      int                   `json:"progress"` // 0..100
	Message       string                `json:"message"`
	Timestamp     time.Time             `json:"timestamp"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
}

// Publisher is the sink for orchestrator progress events. Implementations
// must not block the pipeline; delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, key uuid.UUID, ev Event) error
}

// LogPublisher writes events to the structured log. Always wired so progress
// is observable even without an external transport.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, key uuid.UUID, ev Event) error {
	p.logger.Info("progress.event",
		"extraction_key", key,
		"type", ev.Type,
		"status", ev.Status,
		"progress", ev.Progress,
		"message", ev.Message,
	)
	return nil
}

// Multi fans one event out to several publishers. The first error is
// returned after every publisher has been tried.
type Multi struct {
	publishers []Publisher
}

func NewMulti(publishers ...Publisher) *Multi {
	return &Multi{publishers: publishers}
}

func (m *Multi) Publish(ctx context.Context, key uuid.UUID, ev Event) error {
	var first error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, key, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
