package ocr

import (
	"context"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/docuflow/invoice-extractor/internal/common"
)

// PageRenderer rasterizes PDF pages so they can be fed through image OCR.
type PageRenderer interface {
	// RenderPages renders every page of the PDF at the given DPI, in page order.
	RenderPages(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error)
}

// FitzRenderer renders PDF pages with MuPDF via go-fitz.
type FitzRenderer struct{}

func NewFitzRenderer() *FitzRenderer {
	return &FitzRenderer{}
}

func (FitzRenderer) RenderPages(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, common.InvalidFileFormat("cannot open PDF", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, common.InvalidFileFormat("PDF has no pages", nil)
	}

	pages := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, common.InvalidFileFormat("cannot render PDF page", err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
