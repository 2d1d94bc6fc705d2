package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	"github.com/H0NEYP0T-466/RAGbot/internal/pkg/response"
)

type Chatter interface {
	Query(ctx context.Context, question string) (*model.ChatResult, error)
}

type ChatHandler struct {
	chat Chatter
}

func NewChatHandler(chat Chatter) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		response.Error(c, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	result, err := h.chat.Query(c.Request.Context(), req.Message)
	if err != nil {
		handleError(c, "Failed to process message: ", err)
		return
	}
	response.Success(c, result)
}
