package loader

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"chatpdf/internal/domain"
)

// TextLoader loads a plain text file as a single segment.
type TextLoader struct{}

// Load implements Loader.
func (TextLoader) Load(ctx context.Context, path string) ([]domain.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := statRegular(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrUnreadableDocument, path)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return []domain.Segment{{
		Text: string(data),
		Source: domain.SourceRef{
			DocumentID: DocumentID(path),
			Path:       path,
			Page:       1,
		},
		Metadata: map[string]any{
			"source":      path,
			"page":        1,
			"total_pages": 1,
		},
	}}, nil
}
