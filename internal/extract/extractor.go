// Package extract provides text extraction from uploaded file formats.
// Dispatch is keyed on MIME type because uploads declare a content type;
// files that fail extraction are stored but not indexed.
package extract

import (
	"strings"

	"github.com/personaldrive/semidx/internal/semerr"
)

// MIME types with text extraction support.
const (
	MimePDF   = "application/pdf"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC   = "application/msword"
	MimeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePlain = "text/plain"
)

// Extractor extracts plain text from file contents.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// IsSupported reports whether text can be extracted from the given MIME type.
// Unsupported types (images, video) are stored without indexing.
func (e *Extractor) IsSupported(mimeType string) bool {
	switch normalizeMime(mimeType) {
	case MimePDF, MimeDOCX, MimeDOC, MimeXLSX, MimePlain:
		return true
	}
	return strings.HasPrefix(normalizeMime(mimeType), "text/")
}

// Extract returns the text content of a file given its declared MIME type.
func (e *Extractor) Extract(content []byte, mimeType string) (string, error) {
	switch mt := normalizeMime(mimeType); {
	case mt == MimePDF:
		return extractPDF(content)
	case mt == MimeDOCX || mt == MimeDOC:
		return extractDOCX(content)
	case mt == MimeXLSX:
		return extractExcel(content)
	case mt == MimePlain || strings.HasPrefix(mt, "text/"):
		return extractPlain(content)
	default:
		return "", semerr.Newf(semerr.KindInvalidArgument, "no text extractor for content type %q", mimeType)
	}
}

func normalizeMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
