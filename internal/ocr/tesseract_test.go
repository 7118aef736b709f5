package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/invoice-extractor/constants"
	"github.com/docuflow/invoice-extractor/internal/common"
)

// stubRunner returns canned output per invocation, in order.
type stubRunner struct {
	outputs []string
	err     error
	calls   int
}

func (s *stubRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	if s.err != nil {
		return nil, []byte("engine exploded"), s.err
	}
	out := ""
	if s.calls < len(s.outputs) {
		out = s.outputs[s.calls]
	}
	s.calls++
	return []byte(out), nil, nil
}

type stubRenderer struct {
	pages []image.Image
	err   error
}

func (s stubRenderer) RenderPages(context.Context, []byte, int) ([]image.Image, error) {
	return s.pages, s.err
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testPage() image.Image {
	return image.NewGray(image.Rect(0, 0, 8, 8))
}

func TestTesseractEngine_ExtractImage(t *testing.T) {
	runner := &stubRunner{outputs: []string{"Invoice #1001 Total: $250.00\n"}}
	e := NewTesseractEngine(Config{Preprocess: true}, stubRenderer{}, nil)
	e.runner = runner

	out, err := e.Extract(context.Background(), testPNG(t), "scan.png", constants.MimePNG)
	require.NoError(t, err)
	assert.Equal(t, "Invoice #1001 Total: $250.00", out.Text)
	assert.Equal(t, 1, out.Pages)
	assert.Equal(t, "tesseract", out.Engine)
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)
	assert.Equal(t, 1, runner.calls)
}

func TestTesseractEngine_ExtractImage_Undecodable(t *testing.T) {
	e := NewTesseractEngine(Config{Preprocess: true}, stubRenderer{}, nil)
	e.runner = &stubRunner{outputs: []string{"unused"}}

	_, err := e.Extract(context.Background(), []byte("not an image"), "bad.png", constants.MimePNG)
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidFileFormat, common.ErrorCode(err))
}

func TestTesseractEngine_ExtractPDF_MultiPage(t *testing.T) {
	runner := &stubRunner{outputs: []string{"page one text here\n", "page two text here\n"}}
	e := NewTesseractEngine(Config{}, stubRenderer{pages: []image.Image{testPage(), testPage()}}, nil)
	e.runner = runner

	out, err := e.Extract(context.Background(), []byte("%PDF-1.4"), "doc.pdf", constants.MimePDF)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Pages)
	assert.Equal(t, "page one text here"+constants.PageBreakMarker+"page two text here", out.Text)
	// mean of two identical per-page scores
	assert.InDelta(t, heuristicConfidence("page one text here"), out.Confidence, 1e-9)
}

func TestTesseractEngine_ExtractPDF_MaxPagesLimitsOCRNotPageCount(t *testing.T) {
	runner := &stubRunner{outputs: []string{"only page processed\n"}}
	e := NewTesseractEngine(Config{MaxPages: 1},
		stubRenderer{pages: []image.Image{testPage(), testPage(), testPage()}}, nil)
	e.runner = runner

	out, err := e.Extract(context.Background(), []byte("%PDF-1.4"), "doc.pdf", constants.MimePDF)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, "only page processed", out.Text)
	assert.Equal(t, 1, runner.calls)
}

func TestTesseractEngine_ExtractPDF_RenderFailure(t *testing.T) {
	e := NewTesseractEngine(Config{},
		stubRenderer{err: common.InvalidFileFormat("cannot open PDF", errors.New("broken xref"))}, nil)
	e.runner = &stubRunner{}

	_, err := e.Extract(context.Background(), []byte("junk"), "doc.pdf", constants.MimePDF)
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidFileFormat, common.ErrorCode(err))
}

func TestTesseractEngine_RunnerFailure(t *testing.T) {
	e := NewTesseractEngine(Config{}, stubRenderer{pages: []image.Image{testPage()}}, nil)
	e.runner = &stubRunner{err: errors.New("exit status 1")}

	_, err := e.Extract(context.Background(), []byte("%PDF-1.4"), "doc.pdf", constants.MimePDF)
	require.Error(t, err)
	assert.Equal(t, common.CodeExtractionFailed, common.ErrorCode(err))
}

func TestTesseractEngine_Supports(t *testing.T) {
	e := NewTesseractEngine(Config{}, stubRenderer{}, nil)
	assert.True(t, e.Supports(constants.MimePDF))
	assert.True(t, e.Supports(constants.MimePNG))
	assert.True(t, e.Supports("image/PNG; charset=binary"))
	assert.False(t, e.Supports("application/msword"))
}
