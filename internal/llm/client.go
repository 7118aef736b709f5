package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-extractor/internal/common"
)

// Config for the OpenAI-compatible chat client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "gpt-4o-mini"
	Temperature float64       // kept low to favor determinism
	Timeout     time.Duration // hard per-call timeout
}

// Client implements FieldExtractor against any OpenAI-compatible
// chat/completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

func (c *Client) Provider() string { return "openai" }

// Available reports whether both the credential and model are configured.
func (c *Client) Available() bool {
	return c.cfg.APIKey != "" && c.cfg.Model != ""
}

// ExtractFields sends the OCR text through a single-turn chat request and
// parses the JSON object the model returns. When the client is not
// configured it short-circuits to all-absent fields with confidence 0 so the
// caller can degrade gracefully instead of failing the request.
func (c *Client) ExtractFields(ctx context.Context, ocrText string) (InvoiceFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	if !c.Available() {
		c.log.Warn("llm.extract.unavailable", "req_id", rid, "provider", c.Provider())
		return InvoiceFields{Currency: "USD", Confidence: 0.0}, nil, nil
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(ocrText),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": BuildSystemPrompt()},
			{"role": "user", "content": BuildUserPrompt(ocrText)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return InvoiceFields{}, nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return InvoiceFields{}, raw, common.LLMInvalidResponse("decode chat response", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices", "req_id", rid, "raw_bytes", len(raw))
		return InvoiceFields{}, raw, common.LLMInvalidResponse("no choices in chat response", nil)
	}

	content := StripCodeFences(cc.Choices[0].Message.Content)
	if content == "" {
		c.log.Error("llm.extract.empty_content", "req_id", rid)
		return InvoiceFields{}, raw, common.LLMInvalidResponse("empty message content", nil)
	}
	rawContent := []byte(content)

	if err := ValidateJSONAgainstSchema(BuildInvoiceJSONSchema(), rawContent); err != nil {
		// Sanity check only; the tolerant parse below decides what survives.
		c.log.Warn("llm.extract.schema_mismatch", "req_id", rid, "error", err)
	}

	fields, err := ParseFields(rawContent)
	if err != nil {
		c.log.Error("llm.extract.unparseable_content", "req_id", rid, "error", err)
		return InvoiceFields{}, rawContent, common.LLMInvalidResponse("model returned non-JSON content", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"has_invoice_number", fields.InvoiceNumber != nil,
		"has_amount", fields.Amount != nil,
		"has_party_name", fields.PartyName != nil,
		"currency", fields.Currency,
		"confidence", fields.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fields, rawContent, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, common.LLMAPIError("marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, common.LLMAPIError("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, common.LLMTimeout(fmt.Sprintf("model call exceeded %s", c.cfg.Timeout), err)
		}
		return nil, common.LLMAPIError("chat request failed", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("llm.http.body_close_failed", "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, common.LLMAPIError(
			fmt.Sprintf("chat status %d: %s", resp.StatusCode, truncate(string(raw), 512)), nil)
	}
	return raw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
