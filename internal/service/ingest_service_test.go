package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
	"github.com/H0NEYP0T-466/RAGbot/internal/chunker"
	"github.com/H0NEYP0T-466/RAGbot/internal/config"
	"github.com/H0NEYP0T-466/RAGbot/internal/journal"
	"github.com/H0NEYP0T-466/RAGbot/internal/loader"
	"github.com/H0NEYP0T-466/RAGbot/internal/vectorstore"
)

type ingestFixture struct {
	dataDir  string
	indexDir string
	store    *vectorstore.Memory
	journal  *journal.Journal
	svc      *IngestService
}

func newIngestFixture(t *testing.T, mode string, size, overlap int) *ingestFixture {
	t.Helper()
	return newIngestFixtureWithJournal(t, mode, size, overlap, filepath.Join("data", "history.txt"))
}

// newIngestFixtureWithJournal places the journal at journalRel under the
// fixture root; the corpus always lives in <root>/data.
func newIngestFixtureWithJournal(t *testing.T, mode string, size, overlap int, journalRel string) *ingestFixture {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	f := &ingestFixture{
		dataDir:  filepath.Join(root, "data"),
		indexDir: filepath.Join(root, "index"),
	}
	require.NoError(t, os.MkdirAll(f.dataDir, 0o755))
	splitter, err := chunker.New(size, overlap)
	require.NoError(t, err)
	j, err := journal.New(ctx, filepath.Join(root, journalRel))
	require.NoError(t, err)
	f.journal = j
	f.store = vectorstore.NewMemory(ai.NewEmbedder(ai.NewLocalEmbedProvider(64), "hash", 16), f.indexDir)
	f.svc = NewIngestService(IngestConfig{DataFolder: f.dataDir, JournalMode: mode}, loader.DefaultRegistry(), splitter, f.store, j)
	return f
}

func (f *ingestFixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dataDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanDataFolderFiltersAndCreates(t *testing.T) {
	f := newIngestFixture(t, "", 100, 10)
	f.write(t, "a.txt", "alpha")
	f.write(t, "B.MD", "# beta")
	f.write(t, "image.png", "binary")
	require.NoError(t, os.MkdirAll(filepath.Join(f.dataDir, "nested.txt"), 0o755))

	files, err := f.svc.ScanDataFolder(context.Background())
	require.NoError(t, err)
	var names []string
	for _, p := range files {
		names = append(names, filepath.Base(p))
	}
	assert.ElementsMatch(t, []string{"a.txt", "B.MD", "history.txt"}, names)

	missing := newIngestFixture(t, "", 100, 10)
	require.NoError(t, os.RemoveAll(missing.dataDir))
	files, err = missing.svc.ScanDataFolder(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
	_, err = os.Stat(missing.dataDir)
	assert.NoError(t, err)
}

func (f *ingestFixture) snapshot(t *testing.T) ([]byte, time.Time) {
	t.Helper()
	path := filepath.Join(f.indexDir, vectorstore.SnapshotFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	return data, info.ModTime()
}

func (f *ingestFixture) clearDataFolder(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.dataDir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, os.RemoveAll(filepath.Join(f.dataDir, e.Name())))
	}
}

func TestIndexDocumentsWithoutIndexAndWithoutFiles(t *testing.T) {
	f := newIngestFixture(t, "", 100, 10)
	require.NoError(t, os.Remove(f.journal.Path()))

	docs, chunks, err := f.svc.IndexDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, docs)
	assert.Equal(t, 0, chunks)
	assert.False(t, f.store.Initialized())
	_, err = os.Stat(filepath.Join(f.indexDir, vectorstore.SnapshotFile))
	assert.True(t, os.IsNotExist(err))
}

func TestIndexDocumentsEmptyCorpusLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, "", 20, 5)
	f.write(t, "sky.txt", "The sky is blue.")
	f.write(t, "grass.txt", "Grass is green.")
	_, built, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, built)
	data, modTime := f.snapshot(t)

	f.clearDataFolder(t)
	docs, chunks, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, docs)
	assert.Equal(t, 0, chunks)
	assert.Equal(t, built, f.store.Len())
	assert.Equal(t, StateIdle, f.svc.State())
	after, afterMod := f.snapshot(t)
	assert.Equal(t, data, after)
	assert.Equal(t, modTime, afterMod)
}

func TestIndexDocumentsAllLoadsFailedLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, "", 20, 5)
	f.write(t, "sky.txt", "The sky is blue.")
	_, built, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)
	data, modTime := f.snapshot(t)

	f.clearDataFolder(t)
	f.write(t, "bad.txt", string([]byte{0xff, 0xfe, 0xfd}))
	f.write(t, "worse.txt", string([]byte{0xc3, 0x28}))
	docs, chunks, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, docs)
	assert.Equal(t, 0, chunks)
	assert.Equal(t, built, f.store.Len())
	after, afterMod := f.snapshot(t)
	assert.Equal(t, data, after)
	assert.Equal(t, modTime, afterMod)
}

func TestIndexDocumentsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, "", 20, 5)
	f.write(t, "sky.txt", "The sky is blue.")
	f.write(t, "grass.txt", "Grass is green.")

	docs, chunks, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, docs)
	assert.Equal(t, 2, chunks)

	docs2, chunks2, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, docs, docs2)
	assert.Equal(t, chunks, chunks2)
	assert.Equal(t, 2, f.store.Len())

	stats := f.svc.Stats(ctx)
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.True(t, stats.Initialized)
	assert.False(t, stats.LastIndexed.IsZero())
	assert.Positive(t, stats.IndexBytes)
	assert.Equal(t, string(StateIdle), stats.State)
}

func TestIndexSingleFileIsAdditive(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, "", 20, 5)
	f.write(t, "sky.txt", "The sky is blue.")
	_, before, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)

	path := f.write(t, "sun.txt", "The sun is hot.")
	_, after, err := f.svc.IndexSingleFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	empty := f.write(t, "blank.txt", "   ")
	_, same, err := f.svc.IndexSingleFile(ctx, empty)
	require.NoError(t, err)
	assert.Equal(t, after, same)
}

func TestIndexSingleFileWithoutIndexFallsBackToFull(t *testing.T) {
	f := newIngestFixture(t, "", 20, 5)
	path := f.write(t, "sky.txt", "The sky is blue.")
	f.write(t, "grass.txt", "Grass is green.")

	_, chunks, err := f.svc.IndexSingleFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, chunks)
}

func TestIndexSingleFileLoadFailureKeepsIndex(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, "", 20, 5)
	f.write(t, "sky.txt", "The sky is blue.")
	docs, chunks, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)

	for name, content := range map[string]string{
		"x.png":   "data",
		"bad.txt": string([]byte{0xff, 0xfe, 0xfd}),
	} {
		gotDocs, gotChunks, err := f.svc.IndexSingleFile(ctx, f.write(t, name, content))
		require.NoError(t, err, name)
		assert.Equal(t, docs, gotDocs, name)
		assert.Equal(t, chunks, gotChunks, name)
		assert.Equal(t, StateIdle, f.svc.State(), name)
	}
	assert.Equal(t, chunks, f.store.Len())
}

func TestIndexJournalDelta(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, config.JournalModeDelta, 200, 20)
	f.write(t, "sky.txt", "The sky is blue.")
	_, base, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)

	require.NoError(t, f.journal.Append(ctx, "What color is the sky?", "Blue."))
	added, err := f.svc.IndexJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = f.svc.IndexJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	require.NoError(t, f.journal.Append(ctx, "And grass?", "Green."))
	added, err = f.svc.IndexJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, base+2, f.store.Len())

	size, err := f.journal.Size()
	require.NoError(t, err)
	assert.Equal(t, size, f.store.JournalOffset())
}

func TestIndexJournalFullFileReaddsEverything(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, config.JournalModeFullFile, 500, 20)
	f.write(t, "sky.txt", "The sky is blue.")
	_, base, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)

	require.NoError(t, f.journal.Append(ctx, "q1", "a1"))
	_, err = f.svc.IndexJournal(ctx)
	require.NoError(t, err)
	_, err = f.svc.IndexJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, base+2, f.store.Len())
}

func TestIndexDocumentsIncludesJournalOutsideDataFolder(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixtureWithJournal(t, config.JournalModeDelta, 200, 20, filepath.Join("state", "history.txt"))
	f.write(t, "sky.txt", "The sky is blue.")
	require.NoError(t, f.journal.Append(ctx, "What is my favourite fruit?", "Your favourite fruit is mango."))

	_, chunks, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, chunks)
	size, err := f.journal.Size()
	require.NoError(t, err)
	assert.Equal(t, size, f.store.JournalOffset())

	hits, err := f.store.Search(ctx, "favourite fruit mango", 2)
	require.NoError(t, err)
	sources := make([]string, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, h.Chunk.Metadata.Source)
	}
	assert.Contains(t, sources, "history.txt")

	added, err := f.svc.IndexJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	require.NoError(t, f.journal.Append(ctx, "And vegetables?", "Carrots."))
	added, err = f.svc.IndexJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, f.store.Len())
}

func TestLoadOrCreate(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, "", 20, 5)
	f.write(t, "sky.txt", "The sky is blue.")
	f.write(t, "grass.txt", "Grass is green.")

	docs, chunks, err := f.svc.LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, docs)
	assert.Equal(t, 2, chunks)

	splitter, err := chunker.New(20, 5)
	require.NoError(t, err)
	store := vectorstore.NewMemory(ai.NewEmbedder(ai.NewLocalEmbedProvider(64), "hash", 16), f.indexDir)
	restarted := NewIngestService(IngestConfig{DataFolder: f.dataDir}, loader.DefaultRegistry(), splitter, store, f.journal)
	docs, chunks, err = restarted.LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, docs)
	assert.Equal(t, 2, chunks)
	assert.True(t, store.Initialized())
}

func TestIsJournalAndSupported(t *testing.T) {
	f := newIngestFixture(t, "", 20, 5)
	assert.True(t, f.svc.IsJournal(f.journal.Path()))
	assert.False(t, f.svc.IsJournal(filepath.Join(f.dataDir, "sky.txt")))
	assert.True(t, f.svc.Supported("notes.MD"))
	assert.True(t, f.svc.Supported("legacy.doc"))
	assert.False(t, f.svc.Supported("photo.jpg"))
}
