package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpdf/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadText(t *testing.T) {
	path := writeFile(t, "notes.txt", "alpha beta gamma")

	segs, err := New().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "alpha beta gamma", segs[0].Text)
	assert.Equal(t, 1, segs[0].Source.Page)
	assert.Equal(t, DocumentID(path), segs[0].Source.DocumentID)
	assert.Equal(t, path, segs[0].Metadata["source"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "sheet.xlsx", "x")
	_, err := New().Load(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
}

func TestLoadCorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "this is not a pdf at all")
	_, err := New().Load(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
}

func TestLoadDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "folder.txt")
	require.NoError(t, os.Mkdir(dir, 0o755))
	_, err := New().Load(context.Background(), dir)
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
}

func TestDocumentIDIsStable(t *testing.T) {
	assert.Equal(t, DocumentID("a/b.pdf"), DocumentID("a/b.pdf"))
	assert.NotEqual(t, DocumentID("a/b.pdf"), DocumentID("a/c.pdf"))
}
