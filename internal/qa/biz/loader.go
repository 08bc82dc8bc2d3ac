package biz

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kart-io/anchora/pkg/utils/errors"
)

// Loader reads a document from disk into the text form the chunker
// consumes. Implementations are keyed by file extension.
type Loader interface {
	// Load reads the file at path. The returned document's Source is the
	// base filename.
	Load(path string) (*Document, error)

	// Extensions returns the lowercase extensions this loader handles,
	// dot included.
	Extensions() []string
}

// LoaderRegistry picks a loader by file extension.
type LoaderRegistry struct {
	byExt map[string]Loader
}

// NewLoaderRegistry creates a registry with the built-in text and PDF
// loaders.
func NewLoaderRegistry() *LoaderRegistry {
	r := &LoaderRegistry{byExt: make(map[string]Loader)}
	r.Register(&TextLoader{})
	r.Register(&PDFLoader{})
	return r
}

// Register adds a loader for each of its extensions.
func (r *LoaderRegistry) Register(l Loader) {
	for _, ext := range l.Extensions() {
		r.byExt[strings.ToLower(ext)] = l
	}
}

// Load loads the file at path with the loader matching its extension.
func (r *LoaderRegistry) Load(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := r.byExt[ext]
	if !ok {
		return nil, errors.ErrQALoaderFailure.WithMessagef("unsupported file extension %q", ext)
	}
	return l.Load(path)
}

// Supported returns the registered extensions.
func (r *LoaderRegistry) Supported() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// TextLoader loads plain text and Markdown files. These formats have no
// pages, so chunks carry page 0.
type TextLoader struct{}

// Extensions returns the plain text extensions.
func (l *TextLoader) Extensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// Load reads the whole file as UTF-8 text.
func (l *TextLoader) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrQALoaderFailure.WithCause(err)
	}
	return &Document{
		Source: filepath.Base(path),
		Text:   string(data),
	}, nil
}

// PDFLoader extracts text from PDF files page by page, recording where
// each page begins so chunks can be attributed to pages.
type PDFLoader struct{}

// Extensions returns the PDF extension.
func (l *PDFLoader) Extensions() []string {
	return []string{".pdf"}
}

// Load extracts the plain text of every page. Pages that yield no text,
// such as scanned images, still occupy a span so page numbers stay
// aligned with the original document.
func (l *PDFLoader) Load(path string) (*Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, errors.ErrQALoaderFailure.WithCause(err)
	}
	defer func() { _ = f.Close() }()

	var (
		b     strings.Builder
		pages []PageSpan
		runes int
	)

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, errors.ErrQALoaderFailure.WithMessagef("failed to extract page %d of %s", pageNum, filepath.Base(path)).WithCause(err)
		}

		pages = append(pages, PageSpan{Page: pageNum, Start: runes})
		b.WriteString(text)
		runes += utf8.RuneCountInString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
			runes++
		}
	}

	return &Document{
		Source: filepath.Base(path),
		Text:   b.String(),
		Pages:  pages,
	}, nil
}
