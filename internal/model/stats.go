package model

import "time"

type CorpusStats struct {
	TotalDocuments int       `json:"total_documents"`
	TotalChunks    int       `json:"total_chunks"`
	IndexBytes     int64     `json:"index_bytes"`
	LastIndexed    time.Time `json:"last_indexed"`
	Initialized    bool      `json:"initialized"`
	State          string    `json:"state"`
}
