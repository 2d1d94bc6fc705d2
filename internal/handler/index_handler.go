package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	"github.com/H0NEYP0T-466/RAGbot/internal/pkg/response"
	"github.com/H0NEYP0T-466/RAGbot/internal/schedule"
)

type Indexer interface {
	IndexDocuments(ctx context.Context) (int, int, error)
	Stats(ctx context.Context) model.CorpusStats
}

type QueueReporter interface {
	Status() schedule.QueueStatus
}

// NextRunFunc reports when the scheduled full reindex fires next; zero when
// none is scheduled.
type NextRunFunc func() time.Time

type IndexHandler struct {
	indexer     Indexer
	queue       QueueReporter
	nextReindex NextRunFunc
}

func NewIndexHandler(indexer Indexer, queue QueueReporter, nextReindex NextRunFunc) *IndexHandler {
	return &IndexHandler{indexer: indexer, queue: queue, nextReindex: nextReindex}
}

type reindexResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status           string `json:"status"`
	VectorDB         string `json:"vector_db"`
	DocumentsIndexed int    `json:"documents_indexed"`
	TotalChunks      int    `json:"total_chunks"`
	LastReindexError string `json:"last_reindex_error,omitempty"`
}

type statsResponse struct {
	TotalDocuments   int    `json:"total_documents"`
	TotalChunks      int    `json:"total_chunks"`
	VectorDBSize     string `json:"vector_db_size"`
	LastIndexed      string `json:"last_indexed"`
	IndexingState    string `json:"indexing_state"`
	PendingReindex   int    `json:"pending_reindex_jobs"`
	NextFullReindex  string `json:"next_full_reindex,omitempty"`
	LastReindexError string `json:"last_reindex_error,omitempty"`
}

func (h *IndexHandler) Reindex(c *gin.Context) {
	docs, chunks, err := h.indexer.IndexDocuments(c.Request.Context())
	if err != nil {
		handleError(c, "Failed to reindex: ", err)
		return
	}
	response.Success(c, reindexResponse{
		Status:  "success",
		Message: fmt.Sprintf("Indexed %d documents with %d chunks", docs, chunks),
	})
}

// Health reports "healthy" exactly when a vector index is loaded. A failed
// background reindex leaves the previous index serving, so it is surfaced in
// last_reindex_error without changing the status.
func (h *IndexHandler) Health(c *gin.Context) {
	stats := h.indexer.Stats(c.Request.Context())
	resp := healthResponse{
		Status:           "unhealthy",
		VectorDB:         "disconnected",
		DocumentsIndexed: stats.TotalDocuments,
		TotalChunks:      stats.TotalChunks,
		LastReindexError: h.lastError(),
	}
	if stats.Initialized {
		resp.Status = "healthy"
		resp.VectorDB = "connected"
	}
	response.Success(c, resp)
}

func (h *IndexHandler) Stats(c *gin.Context) {
	stats := h.indexer.Stats(c.Request.Context())
	lastIndexed := "Never"
	if !stats.LastIndexed.IsZero() {
		lastIndexed = stats.LastIndexed.Format(time.RFC3339)
	}
	resp := statsResponse{
		TotalDocuments:   stats.TotalDocuments,
		TotalChunks:      stats.TotalChunks,
		VectorDBSize:     formatMegabytes(stats.IndexBytes),
		LastIndexed:      lastIndexed,
		IndexingState:    stats.State,
		LastReindexError: h.lastError(),
	}
	if h.queue != nil {
		resp.PendingReindex = h.queue.Status().Pending
	}
	if h.nextReindex != nil {
		if next := h.nextReindex(); !next.IsZero() {
			resp.NextFullReindex = next.Format(time.RFC3339)
		}
	}
	response.Success(c, resp)
}

func (h *IndexHandler) lastError() string {
	if h.queue == nil {
		return ""
	}
	last := h.queue.Status().LastError
	if last == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", last.Job, last.Error)
}
