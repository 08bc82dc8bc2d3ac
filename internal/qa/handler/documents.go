package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/anchora/internal/pkg/httputils"
	"github.com/kart-io/anchora/internal/qa/biz"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// DocumentHandler manages document upload, indexing, and deletion.
type DocumentHandler struct {
	service   *biz.Service
	uploadDir string
}

// NewDocumentHandler creates a document handler storing uploads under
// uploadDir.
func NewDocumentHandler(service *biz.Service, uploadDir string) *DocumentHandler {
	return &DocumentHandler{service: service, uploadDir: uploadDir}
}

// uploadedFile describes one file available for indexing.
type uploadedFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// List handles GET /api/documents, listing uploaded files.
func (h *DocumentHandler) List(c *gin.Context) {
	entries, err := os.ReadDir(h.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			httputils.WriteResponse(c, nil, []uploadedFile{})
			return
		}
		httputils.WriteResponse(c, errors.ErrQAUploadFailed.WithCause(err), nil)
		return
	}

	files := make([]uploadedFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, uploadedFile{Filename: e.Name(), Size: info.Size()})
	}
	httputils.WriteResponse(c, nil, files)
}

// Upload handles POST /api/documents/upload with a multipart "file"
// field. The upload is stored but not yet indexed.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		httputils.WriteResponse(c, errors.ErrQAInvalidRequest.WithMessage("multipart field 'file' is required"), nil)
		return
	}

	filename := filepath.Base(file.Filename)
	if filename == "." || filename == string(filepath.Separator) || strings.ContainsAny(filename, "/\\") {
		httputils.WriteResponse(c, errors.ErrQAInvalidRequest.WithMessagef("invalid filename %q", file.Filename), nil)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		httputils.WriteResponse(c, errors.ErrQAUploadFailed.WithCause(err), nil)
		return
	}

	dst := filepath.Join(h.uploadDir, filename)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		httputils.WriteResponse(c, errors.ErrQAUploadFailed.WithCause(err), nil)
		return
	}

	httputils.WriteResponse(c, nil, uploadedFile{Filename: filename, Size: file.Size})
}

// indexRequest names a document to index: either an uploaded file by
// name or an arbitrary path on the server.
type indexRequest struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

// Index handles POST /api/documents/index.
func (h *DocumentHandler) Index(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrQAInvalidRequest.WithCause(err), nil)
		return
	}

	if (req.Filename == "") == (req.FilePath == "") {
		httputils.WriteResponse(c, errors.ErrQAInvalidRequest.WithMessage("exactly one of 'filename' or 'file_path' is required"), nil)
		return
	}

	path := req.FilePath
	if req.Filename != "" {
		filename := filepath.Base(req.Filename)
		if filename != req.Filename {
			httputils.WriteResponse(c, errors.ErrQAInvalidRequest.WithMessagef("invalid filename %q", req.Filename), nil)
			return
		}
		path = filepath.Join(h.uploadDir, filename)
	}

	if _, err := os.Stat(path); err != nil {
		httputils.WriteResponse(c, errors.ErrQADocumentNotFound.WithMessagef("file %q not found", filepath.Base(path)), nil)
		return
	}

	result, err := h.service.IndexFile(c.Request.Context(), path)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, result)
}

// ListIndexed handles GET /api/documents/indexed.
func (h *DocumentHandler) ListIndexed(c *gin.Context) {
	docs, err := h.service.ListIndexed(c.Request.Context())
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, docs)
}

// deleteResponse is the fixed wire shape of a successful deletion.
type deleteResponse struct {
	Source        string `json:"source"`
	DeletedChunks int    `json:"deleted_chunks"`
}

// Delete handles DELETE /api/documents/indexed/:source.
func (h *DocumentHandler) Delete(c *gin.Context) {
	source := c.Param("source")

	deleted, err := h.service.DeleteSource(c.Request.Context(), source)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, deleteResponse{Source: source, DeletedChunks: deleted})
}

// View handles GET /api/documents/view/:source, serving the original
// file so citation deep links resolve.
func (h *DocumentHandler) View(c *gin.Context) {
	source := filepath.Base(c.Param("source"))
	if source == "." || strings.ContainsAny(source, "/\\") {
		httputils.WriteResponse(c, errors.ErrQAInvalidRequest.WithMessagef("invalid source %q", c.Param("source")), nil)
		return
	}

	path := filepath.Join(h.uploadDir, source)
	if _, err := os.Stat(path); err != nil {
		httputils.WriteResponse(c, errors.ErrQADocumentNotFound.WithMessagef("document %q not found", source), nil)
		return
	}
	c.File(path)
}
