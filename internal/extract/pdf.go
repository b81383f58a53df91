package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/personaldrive/semidx/internal/semerr"
)

// extractPDF concatenates the plain text of every page. A page that fails to
// parse is skipped rather than failing the document; scanned or image-only
// pages contribute nothing and the remaining pages still get indexed.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", semerr.Wrap(semerr.KindInvalidArgument, "open PDF", err)
	}

	var b strings.Builder
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}
	return strings.TrimSpace(b.String()), nil
}
