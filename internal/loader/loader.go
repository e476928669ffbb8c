// Package loader turns source files into ordered page segments.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chatpdf/internal/domain"
)

// Loader reads a document into ordered segments covering the whole file.
type Loader interface {
	Load(ctx context.Context, path string) ([]domain.Segment, error)
}

// FileLoader dispatches on file extension.
type FileLoader struct {
	pdf  *PDFLoader
	text *TextLoader
}

// New returns a loader for .pdf, .txt and .md files.
func New() *FileLoader {
	return &FileLoader{pdf: &PDFLoader{}, text: &TextLoader{}}
}

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context, path string) ([]domain.Segment, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return l.pdf.Load(ctx, path)
	case ".txt", ".md", ".text":
		return l.text.Load(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s: unsupported file type", domain.ErrUnreadableDocument, path)
	}
}

// DocumentID derives a stable identifier from the absolute path.
func DocumentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String()
}

func statRegular(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrUnreadableDocument, path)
	}
	return nil
}
