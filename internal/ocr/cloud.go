package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/common"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "pixtral-large-latest"
)

// MistralEngine extracts text through the hosted Mistral OCR API. It takes
// priority over the local engine when configured, since the hosted model
// handles degraded scans better than tesseract.
type MistralEngine struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewMistralEngine creates an engine backed by the Mistral OCR API. If model
// is empty, the default is used.
func NewMistralEngine(apiKey, model string, logger *slog.Logger) *MistralEngine {
	if model == "" {
		model = defaultMistralModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MistralEngine{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

func (m *MistralEngine) Name() string  { return "mistral-ocr" }
func (m *MistralEngine) Priority() int { return 10 }

func (m *MistralEngine) Supports(mimeType string) bool {
	switch constants.NormalizeMime(mimeType) {
	case constants.MimePDF, constants.MimePNG, constants.MimeJPEG:
		return true
	default:
		return false
	}
}

type mistralRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
}

type mistralDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralResponse struct {
	Pages []mistralPage `json:"pages"`
}

type mistralPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

func (m *MistralEngine) Extract(ctx context.Context, data []byte, fileName, mimeType string) (Outcome, error) {
	start := time.Now()

	mt := constants.NormalizeMime(mimeType)
	dataURL := "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)

	body, err := json.Marshal(mistralRequest{
		Model:    m.model,
		Document: mistralDocument{Type: "document_url", DocumentURL: dataURL},
	})
	if err != nil {
		return Outcome{}, common.ExtractionFailed("marshal OCR request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, common.ExtractionFailed("build OCR request", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Outcome{}, common.ExtractionFailed("call OCR API", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			m.logger.Warn("ocr.cloud.body_close_failed", "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return Outcome{}, common.ExtractionFailed(
			fmt.Sprintf("OCR API status %d: %s", resp.StatusCode, truncate(string(raw), 512)), nil)
	}

	var parsed mistralResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Outcome{}, common.ExtractionFailed("decode OCR response", err)
	}
	if len(parsed.Pages) == 0 {
		return Outcome{}, common.ExtractionFailed("OCR response contains no pages", nil)
	}

	var b strings.Builder
	var confSum float64
	for i, p := range parsed.Pages {
		txt := strings.TrimSpace(p.Markdown)
		if i > 0 {
			b.WriteString(constants.PageBreakMarker)
		}
		b.WriteString(txt)
		confSum += heuristicConfidence(txt)
	}

	return Outcome{
		Text:       b.String(),
		Confidence: confSum / float64(len(parsed.Pages)),
		Pages:      len(parsed.Pages),
		Duration:   time.Since(start),
		Engine:     m.Name(),
		Language:   "",
		CapturedAt: time.Now().UTC(),
	}, nil
}
