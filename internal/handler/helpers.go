package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/middleware"
	appErr "github.com/H0NEYP0T-466/RAGbot/internal/pkg/errors"
	"github.com/H0NEYP0T-466/RAGbot/internal/pkg/response"
)

// handleError logs err and writes it as {"detail": ...}. Server-side
// failures are prefixed so clients can tell which operation failed.
func handleError(c *gin.Context, prefix string, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, prefix+err.Error())
	}
}
