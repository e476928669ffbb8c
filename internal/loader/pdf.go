package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"chatpdf/internal/domain"
)

// PDFLoader extracts plain text from every page of a PDF.
type PDFLoader struct{}

// Load implements Loader. Pages without text are skipped; page numbers in
// the returned segments stay 1-based and match the document.
func (PDFLoader) Load(ctx context.Context, path string) (segments []domain.Segment, err error) {
	if err := statRegular(path); err != nil {
		return nil, err
	}
	// The parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("%w: %s: %v", domain.ErrUnreadableDocument, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrUnreadableDocument, path, err)
	}
	defer f.Close()

	docID := DocumentID(path)
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %w", domain.ErrUnreadableDocument, path, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text: text,
			Source: domain.SourceRef{
				DocumentID: docID,
				Path:       path,
				Page:       i,
			},
			Metadata: map[string]any{
				"source":      path,
				"page":        i,
				"total_pages": total,
				"fonts":       p.Fonts(),
			},
		})
	}
	return segments, nil
}
