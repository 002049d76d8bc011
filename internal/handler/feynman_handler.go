package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygen-api/internal/dto"
	"github.com/noah-isme/studygen-api/internal/models"
	"github.com/noah-isme/studygen-api/pkg/response"
)

type feynmanService interface {
	Session(ctx context.Context, documentID string) (*models.FeynmanSession, error)
	Start(ctx context.Context, documentID string) (*models.FeynmanSession, error)
	SubmitAnswer(ctx context.Context, documentID string, index int, text string) (*models.FeynmanStep, error)
}

// FeynmanHandler drives the explain-it-back flow for a document.
type FeynmanHandler struct {
	service feynmanService
}

// NewFeynmanHandler constructs the handler.
func NewFeynmanHandler(service feynmanService) *FeynmanHandler {
	return &FeynmanHandler{service: service}
}

// Start godoc
// @Summary Start or restart a Feynman session
// @Tags Feynman
// @Produce json
// @Param id path string true "Document ID"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/feynman [post]
func (h *FeynmanHandler) Start(c *gin.Context) {
	session, err := h.service.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Session godoc
// @Summary Current Feynman session state
// @Tags Feynman
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/feynman [get]
func (h *FeynmanHandler) Session(c *gin.Context) {
	session, err := h.service.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Answer godoc
// @Summary Submit the explanation for the current question
// @Tags Feynman
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.FeynmanAnswerRequest true "Answer"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/feynman/answers [post]
func (h *FeynmanHandler) Answer(c *gin.Context) {
	var req dto.FeynmanAnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	step, err := h.service.SubmitAnswer(c.Request.Context(), c.Param("id"), *req.Index, req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, step, nil)
}
