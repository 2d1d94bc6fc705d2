package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	appErr "github.com/H0NEYP0T-466/RAGbot/internal/pkg/errors"
	"github.com/H0NEYP0T-466/RAGbot/internal/pkg/response"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type TurnReader interface {
	Turns(limit int) ([]model.Turn, error)
}

type HistoryHandler struct {
	turns TurnReader
}

func NewHistoryHandler(turns TurnReader) *HistoryHandler {
	return &HistoryHandler{turns: turns}
}

type historyResponse struct {
	Turns []model.Turn `json:"turns"`
}

func (h *HistoryHandler) List(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handleError(c, "", fmt.Errorf("limit must be a positive integer: %w", appErr.ErrInvalid))
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	turns, err := h.turns.Turns(limit)
	if err != nil {
		handleError(c, "Failed to read history: ", err)
		return
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	response.Success(c, historyResponse{Turns: turns})
}
