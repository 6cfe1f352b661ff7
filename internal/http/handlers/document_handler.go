// Document HTTP handlers.
//
// This file exposes the reference-document endpoints:
//   - GET    /documents             (list registered documents)
//   - POST   /documents             (multipart upload + text extraction)
//   - DELETE /documents/:id         (unregister by path id)
//   - DELETE /documents             (unregister by JSON {id})
//   - GET    /documents/:id/text    (extracted text as text/plain)
//   - GET    /documents/search      (passage search across extracted text)
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-assistant/internal/domain"
	"github.com/tbourn/go-study-assistant/internal/services"
	"github.com/tbourn/go-study-assistant/internal/utils"
)

const (
	defaultSearchK = 5
	maxSearchK     = 20
)

// UploadResponse is returned after a document has been stored and extracted.
type UploadResponse struct {
	Success    bool            `json:"success"`
	Document   domain.Document `json:"document"`
	Pages      int             `json:"pages"`
	TextLength int             `json:"textLength"`
	Message    string          `json:"message"`
}

// DocumentsResponse wraps the document registry listing.
type DocumentsResponse struct {
	Documents []domain.Document `json:"documents"`
}

// DeleteDocumentRequest is the JSON body accepted by DELETE /documents.
type DeleteDocumentRequest struct {
	ID string `json:"id"`
}

// SuccessResponse is a generic acknowledgement.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SearchResponse carries ranked passages.
type SearchResponse struct {
	Results []services.DocumentHit `json:"results"`
}

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List documents
// @Description Returns every registered reference document in upload order.
// @Tags        Documents
// @Produce     json
// @Success     200  {object}  handlers.DocumentsResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	docs, err := h.docSvc.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DocumentsResponse{Documents: docs})
}

// UploadDocument godoc
// @ID          uploadDocument
// @Summary     Upload a document
// @Description Accepts a PDF, DOC or DOCX file (max 10MB), extracts its text and registers it.
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       file  formData  file  true  "PDF or Word file"
//
// @Success     201  {object}  handlers.UploadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing file, unsupported type or unreadable content"
// @Failure     413  {object}  handlers.ErrorResponse  "File too large"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /documents [post]
func (h *Handlers) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			failErr(c, services.ErrFileTooLarge)
			return
		}
		// No file part: let the service report it so the check order holds.
		h.ingest(c, services.IngestInput{})
		return
	}

	f, err := fh.Open()
	if err != nil {
		failErr(c, err)
		return
	}
	defer f.Close()

	// Read at most one byte past the cap; the service rejects oversize input
	// from DeclaredSize before it looks at Data.
	data, err := io.ReadAll(io.LimitReader(f, services.MaxDocumentBytes+1))
	if err != nil {
		failErr(c, err)
		return
	}

	h.ingest(c, services.IngestInput{
		Data:         data,
		FileName:     fh.Filename,
		DeclaredType: fh.Header.Get("Content-Type"),
		DeclaredSize: fh.Size,
	})
}

func (h *Handlers) ingest(c *gin.Context, in services.IngestInput) {
	res, err := h.docSvc.Ingest(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, UploadResponse{
		Success:    true,
		Document:   *res.Document,
		Pages:      res.PageEstimate,
		TextLength: res.TextLength,
		Message:    "File đã được tải lên và xử lý thành công",
	})
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a document
// @Description Unregisters the document. Stored bytes are kept.
// @Tags        Documents
// @Produce     json
// @Param       id  path  string  true  "Document ID"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	h.removeDocument(c, c.Param("id"))
}

// DeleteDocumentByBody godoc
// @ID          deleteDocumentByBody
// @Summary     Delete a document (JSON body)
// @Tags        Documents
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.DeleteDocumentRequest  true  "Document ID"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /documents [delete]
func (h *Handlers) DeleteDocumentByBody(c *gin.Context) {
	var req DeleteDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.removeDocument(c, req.ID)
}

func (h *Handlers) removeDocument(c *gin.Context, id string) {
	if err := h.docSvc.Remove(c.Request.Context(), strings.TrimSpace(id)); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SuccessResponse{Success: true, Message: "Tài liệu đã được xóa thành công"})
}

// DocumentText godoc
// @ID          documentText
// @Summary     Extracted text of a document
// @Tags        Documents
// @Produce     plain
// @Param       id  path  string  true  "Document ID"
// @Success     200  {string}  string
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /documents/{id}/text [get]
func (h *Handlers) DocumentText(c *gin.Context) {
	text, err := h.docSvc.Text(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// SearchDocuments godoc
// @ID          searchDocuments
// @Summary     Search documents
// @Description Ranks passages of all extracted texts by word overlap with q.
// @Tags        Documents
// @Produce     json
// @Param       q  query  string  true   "Search text"
// @Param       k  query  int     false  "Max results (1..20)"  default(5)
// @Success     200  {object}  handlers.SearchResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /documents/search [get]
func (h *Handlers) SearchDocuments(c *gin.Context) {
	k, valid := utils.IntInRange(c.Query("k"), defaultSearchK, 1, maxSearchK)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "k must be an integer between 1 and 20")
		return
	}
	hits, err := h.docSvc.Search(c.Request.Context(), c.Query("q"), k)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SearchResponse{Results: hits})
}
