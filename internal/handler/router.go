package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/H0NEYP0T-466/RAGbot/internal/middleware"
)

type RouterDeps struct {
	Chat          *ChatHandler
	Index         *IndexHandler
	History       *HistoryHandler
	ChatRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/chat", middleware.RateLimit(deps.ChatRateLimit), deps.Chat.Chat)
	api.POST("/reindex", deps.Index.Reindex)
	api.GET("/health", deps.Index.Health)
	api.GET("/stats", deps.Index.Stats)
	api.GET("/history", deps.History.List)
}
