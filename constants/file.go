package constants

import "strings"

// Canonical source formats for the extraction pipeline.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// MIME types accepted at intake.
const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeTIFF = "image/tiff"
)

// PageBreakMarker separates page texts in multi-page OCR output.
const PageBreakMarker = "\n\f\n"

// AllowedMimeTypes holds the MIME types the pipeline accepts at intake.
var AllowedMimeTypes = map[string]struct{}{
	MimePDF:  {},
	MimePNG:  {},
	MimeJPEG: {},
	MimeTIFF: {},
}

// NormalizeMime lowercases a MIME type and strips any parameters
// (e.g. "image/PNG; charset=binary" -> "image/png").
func NormalizeMime(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// MapMimeToFormat maps a MIME type to a canonical format, or "" if unsupported.
func MapMimeToFormat(mimeType string) string {
	switch NormalizeMime(mimeType) {
	case MimePDF:
		return PDF
	case MimePNG, MimeJPEG, MimeTIFF:
		return IMAGE
	default:
		return ""
	}
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeForExt guesses a MIME type from a file extension, for callers that only
// have a file name (batch intake). Returns "" when unknown.
func MimeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return MimePDF
	case "png":
		return MimePNG
	case "jpg", "jpeg":
		return MimeJPEG
	case "tif", "tiff":
		return MimeTIFF
	default:
		return ""
	}
}
