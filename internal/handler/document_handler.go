package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygen-api/internal/dto"
	"github.com/noah-isme/studygen-api/internal/middleware"
	"github.com/noah-isme/studygen-api/internal/models"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
	"github.com/noah-isme/studygen-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, req dto.UploadDocumentRequest, upload dto.DocumentUpload) (*dto.UploadDocumentResponse, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]models.DocumentSummary, error)
	Seed(ctx context.Context, id string, req dto.SeedDocumentRequest) (*models.Document, error)
	Share(ctx context.Context, id string) (*dto.ShareLinkResponse, error)
	Shared(ctx context.Context, token string) (*models.Document, error)
	Export(ctx context.Context, id, format string) (*dto.ExportFile, error)
}

// DocumentHandler exposes upload, retrieval, export and sharing endpoints.
type DocumentHandler struct {
	service  documentService
	maxBytes int64
}

// NewDocumentHandler constructs the handler. maxBytes caps the uploaded file.
func NewDocumentHandler(service documentService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{service: service, maxBytes: maxBytes}
}

// Upload godoc
// @Summary Upload a document and generate study materials
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file false "Document (pdf, txt, md)"
// @Param formats formData string true "Comma separated formats: flashcards,summary,cornellNotes,multipleChoice"
// @Param modelType formData string false "azure or anthropic"
// @Param text formData string false "Raw text used instead of a file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	req := dto.UploadDocumentRequest{
		Formats:   splitFormValues(c.PostFormArray("formats")),
		ModelType: c.PostForm("modelType"),
		Text:      c.PostForm("text"),
		FileName:  c.PostForm("fileName"),
	}

	upload, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.Upload(c.Request.Context(), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, middleware.ExtractMeta(c))
}

func (h *DocumentHandler) readUpload(c *gin.Context) (dto.DocumentUpload, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return dto.DocumentUpload{}, nil
		}
		return dto.DocumentUpload{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart upload")
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return dto.DocumentUpload{}, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxBytes))
	}
	file, err := header.Open()
	if err != nil {
		return dto.DocumentUpload{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read upload")
	}
	defer file.Close()

	reader := io.Reader(file)
	if h.maxBytes > 0 {
		reader = io.LimitReader(file, h.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return dto.DocumentUpload{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read upload")
	}
	return dto.DocumentUpload{FileName: header.Filename, Data: data}, nil
}

// List godoc
// @Summary List processed documents
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a processed document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download study materials
// @Tags Documents
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Document ID"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Router /documents/{id}/export [get]
func (h *DocumentHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.FileName, file.ContentType, file.Data)
}

// Share godoc
// @Summary Create a read-only share link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/share [post]
func (h *DocumentHandler) Share(c *gin.Context) {
	link, err := h.service.Share(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Shared godoc
// @Summary Open a shared document
// @Tags Documents
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /shared/{token} [get]
func (h *DocumentHandler) Shared(c *gin.Context) {
	doc, err := h.service.Shared(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Seed godoc
// @Summary Overwrite a document record (non-production only)
// @Tags Debug
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.SeedDocumentRequest true "Record contents"
// @Success 200 {object} response.Envelope
// @Router /debug/documents/{id} [put]
func (h *DocumentHandler) Seed(c *gin.Context) {
	var req dto.SeedDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	doc, err := h.service.Seed(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}
