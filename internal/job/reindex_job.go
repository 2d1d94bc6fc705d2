package job

import (
	"context"
	"path/filepath"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Indexer is the write side of the ingestion pipeline.
type Indexer interface {
	IndexDocuments(ctx context.Context) (int, int, error)
	IndexSingleFile(ctx context.Context, path string) (int, int, error)
	IndexJournal(ctx context.Context) (int, error)
}

type JournalReindexJob struct {
	indexer Indexer
}

func NewJournalReindexJob(indexer Indexer) *JournalReindexJob {
	return &JournalReindexJob{indexer: indexer}
}

func (j *JournalReindexJob) Name() string {
	return "journal_reindex"
}

func (j *JournalReindexJob) Run(ctx context.Context) error {
	_, err := j.indexer.IndexJournal(ctx)
	return err
}

type FullReindexJob struct {
	indexer Indexer
}

func NewFullReindexJob(indexer Indexer) *FullReindexJob {
	return &FullReindexJob{indexer: indexer}
}

func (j *FullReindexJob) Name() string {
	return "full_reindex"
}

func (j *FullReindexJob) Run(ctx context.Context) error {
	docs, chunks, err := j.indexer.IndexDocuments(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("scheduled reindex done", zap.Int("documents", docs), zap.Int("chunks", chunks))
	return nil
}

type FileReindexJob struct {
	indexer Indexer
	path    string
}

func NewFileReindexJob(indexer Indexer, path string) *FileReindexJob {
	return &FileReindexJob{indexer: indexer, path: path}
}

func (j *FileReindexJob) Name() string {
	return "file_reindex:" + filepath.Base(j.path)
}

func (j *FileReindexJob) Run(ctx context.Context) error {
	_, _, err := j.indexer.IndexSingleFile(ctx, j.path)
	return err
}
