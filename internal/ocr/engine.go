// Package ocr turns document bytes into text with a heuristic quality score.
package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/docuflow/invoice-extractor/internal/common"
)

// Outcome is the immutable result of one OCR pass over a document.
type Outcome struct {
	Text       string
	Confidence float64 // always clamped to [0,1]
	Pages      int     // PDF page count, 1 for a bare image
	Duration   time.Duration
	Engine     string
	Language   string
	CapturedAt time.Time
}

// Engine is implemented by OCR providers. Engines are stateless with respect
// to requests and safe for concurrent use.
type Engine interface {
	// Name identifies the engine in extraction metadata.
	Name() string
	// Priority breaks ties when several engines support a MIME type; higher wins.
	Priority() int
	// Supports reports whether the engine can handle the given MIME type.
	Supports(mimeType string) bool
	// Extract runs OCR over the raw document bytes.
	Extract(ctx context.Context, data []byte, fileName, mimeType string) (Outcome, error)
}

// Registry selects an engine for a document by MIME type.
type Registry struct {
	engines []Engine
}

func NewRegistry(engines ...Engine) *Registry {
	return &Registry{engines: engines}
}

// Register adds an engine. Not safe for concurrent use with Select; register
// everything at startup.
func (r *Registry) Register(e Engine) {
	r.engines = append(r.engines, e)
}

// Select returns the supporting engine with the highest priority, or an
// UNSUPPORTED_FILE_TYPE error when no engine supports the MIME type.
func (r *Registry) Select(mimeType string) (Engine, error) {
	var best Engine
	for _, e := range r.engines {
		if !e.Supports(mimeType) {
			continue
		}
		if best == nil || e.Priority() > best.Priority() {
			best = e
		}
	}
	if best == nil {
		return nil, common.UnsupportedFileType(fmt.Sprintf("no OCR engine supports %q", mimeType))
	}
	return best, nil
}
