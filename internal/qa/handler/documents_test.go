package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadFile(t *testing.T, engine http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestUploadThenIndexThenDelete(t *testing.T) {
	uploadDir := t.TempDir()
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, uploadDir)

	w := uploadFile(t, engine, "notes.txt", "Uploaded document content long enough for one chunk of text.")
	require.Equal(t, http.StatusOK, w.Code)
	assert.FileExists(t, filepath.Join(uploadDir, "notes.txt"))

	w = doJSON(engine, http.MethodPost, "/api/documents/index", `{"filename":"notes.txt"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chunks_count":1`)

	// The indexed listing now shows the document.
	req := httptest.NewRequest(http.MethodGet, "/api/documents/indexed", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "notes.txt")
	assert.Contains(t, rec.Body.String(), "chunk_count")
	assert.Contains(t, rec.Body.String(), "last_indexed_at")

	// Deletion reports the exact chunk count in a fixed shape.
	req = httptest.NewRequest(http.MethodDelete, "/api/documents/indexed/notes.txt", nil)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var deleted struct {
		Source        string `json:"source"`
		DeletedChunks int    `json:"deleted_chunks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	assert.Equal(t, "notes.txt", deleted.Source)
	assert.Equal(t, 1, deleted.DeletedChunks)
}

func TestDeleteUnknownSourceReportsZero(t *testing.T) {
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, t.TempDir())

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/indexed/ghost.txt", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"source":"ghost.txt","deleted_chunks":0}`, rec.Body.String())
}

func TestIndexRequiresExactlyOneLocator(t *testing.T) {
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, t.TempDir())

	w := doJSON(engine, http.MethodPost, "/api/documents/index", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(engine, http.MethodPost, "/api/documents/index", `{"filename":"a.txt","file_path":"/tmp/a.txt"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexMissingFileReturns404(t *testing.T) {
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, t.TempDir())

	w := doJSON(engine, http.MethodPost, "/api/documents/index", `{"filename":"missing.txt"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndexByFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "external.md")
	require.NoError(t, os.WriteFile(path, []byte("External document body with enough content to index."), 0o600))

	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, t.TempDir())

	w := doJSON(engine, http.MethodPost, "/api/documents/index", fmt.Sprintf(`{"file_path":%q}`, path))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "external.md")
}

func TestListUploadedDocuments(t *testing.T) {
	uploadDir := t.TempDir()
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, uploadDir)

	uploadFile(t, engine, "a.txt", "first file content")
	uploadFile(t, engine, "b.md", "second file content")

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a.txt")
	assert.Contains(t, rec.Body.String(), "b.md")
}

func TestViewServesDocument(t *testing.T) {
	uploadDir := t.TempDir()
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, uploadDir)
	uploadFile(t, engine, "view.txt", "viewable content")

	req := httptest.NewRequest(http.MethodGet, "/api/documents/view/view.txt", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "viewable content", rec.Body.String())
}

func TestViewUnknownDocumentReturns404(t *testing.T) {
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/view/ghost.txt", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	engine, _ := newTestRouter(t, &stubChat{reply: "x"}, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
