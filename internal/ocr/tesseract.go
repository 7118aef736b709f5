package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/common"
	"github.com/docuflow/invoice-extractor/internal/preprocess"
)

// Config tunes the tesseract-backed engine.
type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Language    string // default "eng"
	TessdataDir string
	DPI         int  // rasterization DPI for PDF pages, default 300
	MaxPages    int  // 0 = no limit on pages OCRed per PDF
	Preprocess  bool // grayscale + Otsu binarization before OCR
	PSM         int  // e.g., 6 is good for a uniform block of text
	OEM         int  // 1 = LSTM; leave 0 to use default
}

// TesseractEngine runs the tesseract binary over images, rasterizing PDF
// pages first. Pages of one document are OCRed sequentially in page order so
// the page-break markers in the concatenated text are deterministic.
type TesseractEngine struct {
	cfg      Config
	runner   Runner
	renderer PageRenderer
	logger   *slog.Logger
}

func NewTesseractEngine(cfg Config, renderer PageRenderer, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if renderer == nil {
		renderer = NewFitzRenderer()
	}
	return &TesseractEngine{cfg: cfg, runner: execRunner{}, renderer: renderer, logger: logger}
}

func (e *TesseractEngine) Name() string  { return "tesseract" }
func (e *TesseractEngine) Priority() int { return 0 }

func (e *TesseractEngine) Supports(mimeType string) bool {
	return constants.MapMimeToFormat(mimeType) != ""
}

func (e *TesseractEngine) Extract(ctx context.Context, data []byte, fileName, mimeType string) (Outcome, error) {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "engine", e.Name(), "file", fileName, "mime", mimeType, "bytes", len(data))

	tmpDir, err := os.MkdirTemp("", "ivx-ocr-*")
	if err != nil {
		return Outcome{}, common.ExtractionFailed("create temp dir", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tempdir.remove_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	var (
		text  string
		conf  float64
		pages int
	)
	switch constants.MapMimeToFormat(mimeType) {
	case constants.PDF:
		text, conf, pages, err = e.extractPDF(ctx, data, tmpDir)
	case constants.IMAGE:
		text, conf, err = e.extractImage(ctx, data, mimeType, tmpDir)
		pages = 1
	default:
		return Outcome{}, common.UnsupportedFileType(fmt.Sprintf("unsupported MIME type %q", mimeType))
	}
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Text:       text,
		Confidence: conf,
		Pages:      pages,
		Duration:   time.Since(start),
		Engine:     e.Name(),
		Language:   e.cfg.Language,
		CapturedAt: time.Now().UTC(),
	}
	e.logger.Debug("ocr.extract.ok",
		"engine", e.Name(), "file", fileName,
		"pages", out.Pages, "confidence", out.Confidence,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (e *TesseractEngine) extractImage(ctx context.Context, data []byte, mimeType, tmpDir string) (string, float64, error) {
	page, err := e.prepareImage(data, mimeType, tmpDir, 0)
	if err != nil {
		return "", 0, err
	}
	txt, err := e.tesseractOCR(ctx, page)
	if err != nil {
		return "", 0, err
	}
	txt = strings.TrimSpace(txt)
	return txt, heuristicConfidence(txt), nil
}

func (e *TesseractEngine) extractPDF(ctx context.Context, data []byte, tmpDir string) (string, float64, int, error) {
	pages, err := e.renderer.RenderPages(ctx, data, e.cfg.DPI)
	if err != nil {
		return "", 0, 0, err
	}
	pageCount := len(pages)

	limit := pageCount
	if e.cfg.MaxPages > 0 && limit > e.cfg.MaxPages {
		limit = e.cfg.MaxPages
	}

	var b strings.Builder
	var confSum float64
	for i := 0; i < limit; i++ {
		img := pages[i]
		if e.cfg.Preprocess {
			img = preprocess.Binarize(img)
		}
		path := filepath.Join(tmpDir, fmt.Sprintf("page-%03d.png", i+1))
		if err := writePNG(path, img); err != nil {
			return "", 0, 0, common.ExtractionFailed("write page image", err)
		}
		txt, err := e.tesseractOCR(ctx, path)
		if err != nil {
			return "", 0, 0, err
		}
		txt = strings.TrimSpace(txt)
		if b.Len() > 0 {
			b.WriteString(constants.PageBreakMarker)
		}
		b.WriteString(txt)
		confSum += heuristicConfidence(txt)
	}
	conf := 0.0
	if limit > 0 {
		conf = confSum / float64(limit)
	}
	return b.String(), conf, pageCount, nil
}

// prepareImage writes the page to disk in a form tesseract accepts, applying
// grayscale + Otsu binarization when enabled. TIFF is passed through untouched
// since tesseract reads it natively and the stdlib cannot decode it.
func (e *TesseractEngine) prepareImage(data []byte, mimeType, tmpDir string, page int) (string, error) {
	mt := constants.NormalizeMime(mimeType)
	if !e.cfg.Preprocess || mt == constants.MimeTIFF {
		path := filepath.Join(tmpDir, fmt.Sprintf("input-%03d%s", page, extForMime(mt)))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return "", common.ExtractionFailed("write input image", err)
		}
		return path, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", common.InvalidFileFormat("cannot decode image", err)
	}
	path := filepath.Join(tmpDir, fmt.Sprintf("input-%03d.png", page))
	if err := writePNG(path, preprocess.Binarize(img)); err != nil {
		return "", common.ExtractionFailed("write preprocessed image", err)
	}
	return path, nil
}

func (e *TesseractEngine) tesseractOCR(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", common.ExtractionFailed(fmt.Sprintf("tesseract: %s", truncate(string(errb), 512)), err)
	}
	return string(out), nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func extForMime(mimeType string) string {
	switch mimeType {
	case constants.MimePNG:
		return ".png"
	case constants.MimeJPEG:
		return ".jpg"
	case constants.MimeTIFF:
		return ".tif"
	case constants.MimePDF:
		return ".pdf"
	default:
		return ".bin"
	}
}
