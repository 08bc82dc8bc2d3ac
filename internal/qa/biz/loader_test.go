package biz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anchora/pkg/utils/errors"
)

func TestTextLoaderLoadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	r := NewLoaderRegistry()
	doc, err := r.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", doc.Source)
	assert.Equal(t, "hello world", doc.Text)
	assert.Empty(t, doc.Pages)
}

func TestLoaderRegistryMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody."), 0o600))

	r := NewLoaderRegistry()
	doc, err := r.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "README.md", doc.Source)
	assert.Contains(t, doc.Text, "# Title")
}

func TestLoaderRegistryUnsupportedExtension(t *testing.T) {
	r := NewLoaderRegistry()
	_, err := r.Load("document.docx")
	require.ErrorIs(t, err, errors.ErrQALoaderFailure)
}

func TestLoaderRegistryMissingFile(t *testing.T) {
	r := NewLoaderRegistry()
	_, err := r.Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, errors.ErrQALoaderFailure)
}

func TestLoaderRegistrySupported(t *testing.T) {
	r := NewLoaderRegistry()
	assert.ElementsMatch(t, []string{".txt", ".md", ".markdown", ".pdf"}, r.Supported())
}
