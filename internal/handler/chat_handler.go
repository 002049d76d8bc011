package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studygen-api/internal/dto"
	"github.com/noah-isme/studygen-api/internal/models"
	"github.com/noah-isme/studygen-api/pkg/response"
)

type chatService interface {
	Chat(ctx context.Context, documentID, message string) (*models.ChatReply, error)
}

// ChatHandler answers questions about a stored document.
type ChatHandler struct {
	service chatService
}

// NewChatHandler constructs a chat handler.
func NewChatHandler(service chatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Chat godoc
// @Summary Ask a question about a document
// @Description Backend failures produce a canned reply with fallback=true rather than an error.
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ChatRequest true "Question"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if !bindJSON(c, &req) {
		return
	}
	reply, err := h.service.Chat(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reply, nil)
}
