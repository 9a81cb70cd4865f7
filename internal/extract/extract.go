// Package extract turns a PDF payload into per-page text units.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfchat-backend/internal/shared/apperr"
)

var (
	// ErrUnreadable means the payload is not a PDF the parser can open.
	ErrUnreadable = fmt.Errorf("%w: unreadable pdf", apperr.ErrValidation)
	// ErrNoPages means the PDF parsed but has no pages.
	ErrNoPages = fmt.Errorf("%w: pdf has no pages", apperr.ErrValidation)
)

// SplitPages returns one text unit per physical page, in page order. Pages
// without extractable text yield an empty unit so the page count stays exact.
func SplitPages(ctx context.Context, data []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrUnreadable
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, ErrNoPages
	}
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w: %v", i, ErrUnreadable, err)
		}
		pages = append(pages, normalize(text))
	}
	return pages, nil
}

// normalize collapses runs of whitespace left by the content stream layout.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
