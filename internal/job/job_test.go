package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	full, journal int
	files         []string
	err           error
}

func (f *fakeIndexer) IndexDocuments(context.Context) (int, int, error) {
	f.full++
	return 2, 10, f.err
}

func (f *fakeIndexer) IndexSingleFile(_ context.Context, path string) (int, int, error) {
	f.files = append(f.files, path)
	return 2, 12, f.err
}

func (f *fakeIndexer) IndexJournal(context.Context) (int, error) {
	f.journal++
	return 1, f.err
}

type fakeCleaner struct {
	cutoff int64
}

func (f *fakeCleaner) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

func TestReindexJobs(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndexer{}

	require.NoError(t, NewJournalReindexJob(idx).Run(ctx))
	require.NoError(t, NewFullReindexJob(idx).Run(ctx))
	fileJob := NewFileReindexJob(idx, "/data/notes.md")
	require.NoError(t, fileJob.Run(ctx))

	assert.Equal(t, 1, idx.journal)
	assert.Equal(t, 1, idx.full)
	assert.Equal(t, []string{"/data/notes.md"}, idx.files)
	assert.Equal(t, "file_reindex:notes.md", fileJob.Name())
	assert.Equal(t, "journal_reindex", NewJournalReindexJob(idx).Name())
	assert.Equal(t, "full_reindex", NewFullReindexJob(idx).Name())
}

func TestReindexJobPropagatesError(t *testing.T) {
	idx := &fakeIndexer{err: errors.New("disk full")}
	require.Error(t, NewFullReindexJob(idx).Run(context.Background()))
	require.Error(t, NewJournalReindexJob(idx).Run(context.Background()))
}

func TestEmbeddingCacheCleanupDefaultsToThirtyDays(t *testing.T) {
	c := &fakeCleaner{}
	require.NoError(t, NewEmbeddingCacheCleanupJob(c, 0).Run(context.Background()))
	want := time.Now().Add(-30 * 24 * time.Hour).Unix()
	assert.InDelta(t, want, c.cutoff, 5)
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 1).Run(context.Background()))
}
