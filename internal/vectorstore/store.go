package vectorstore

import (
	"context"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

type IndexStats struct {
	Count       int
	Bytes       int64
	Dimension   int
	Initialized bool
}

// Store is a nearest-neighbour index over chunk embeddings. Search returns
// hits by ascending squared L2 distance.
type Store interface {
	Rebuild(ctx context.Context, chunks []model.Chunk) error
	Add(ctx context.Context, chunks []model.Chunk) (int, error)
	Search(ctx context.Context, query string, k int) ([]model.SearchHit, error)
	Persist(ctx context.Context) error
	Load(ctx context.Context) (bool, error)
	Stats() IndexStats
	Initialized() bool
}
