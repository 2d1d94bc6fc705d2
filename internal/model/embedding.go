package model

import "time"

type ChunkMetadata struct {
	Source string     `json:"source"`
	Type   SourceType `json:"type"`
	Page   *int       `json:"page,omitempty"`
}

type Chunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkEmbedding is the persisted form of one vector index entry.
type ChunkEmbedding struct {
	Chunk     Chunk     `json:"chunk"`
	Embedding []float32 `json:"embedding"`
	Position  int       `json:"position"`
}

type SearchHit struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float32 `json:"distance"`
}

// EmbeddingCacheEntry is one cached vector keyed by model and content hash.
type EmbeddingCacheEntry struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}

// IndexSnapshot is the on-disk image of the vector index.
type IndexSnapshot struct {
	ModelName     string
	Dimension     int
	LastIndexed   time.Time
	JournalOffset int64
	Entries       []ChunkEmbedding
}
