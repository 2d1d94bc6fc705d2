package vectorstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	appErr "github.com/H0NEYP0T-466/RAGbot/internal/pkg/errors"
	"github.com/H0NEYP0T-466/RAGbot/internal/repo"
)

const SnapshotFile = "index.db"

// Memory is a flat, exhaustive L2 index held in memory and snapshotted to
// sqlite. Embeddings are computed outside the lock; readers share the lock
// with each other and are only blocked while a writer swaps or appends.
type Memory struct {
	embedder  ai.IEmbedder
	dir       string
	snapshots *repo.SnapshotRepo

	mu            sync.RWMutex
	entries       []model.ChunkEmbedding
	dim           int
	initialized   bool
	lastIndexed   time.Time
	journalOffset int64
}

var _ Store = (*Memory)(nil)

func NewMemory(embedder ai.IEmbedder, dir string) *Memory {
	return &Memory{
		embedder:  embedder,
		dir:       dir,
		snapshots: repo.NewSnapshotRepo(filepath.Join(dir, SnapshotFile)),
	}
}

func (m *Memory) embedChunks(ctx context.Context, chunks []model.Chunk) ([]model.ChunkEmbedding, int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, 0, &ai.BatchError{Index: len(vecs), Err: fmt.Errorf("got %d vectors for %d chunks", len(vecs), len(chunks))}
	}
	dim := 0
	out := make([]model.ChunkEmbedding, len(chunks))
	for i, vec := range vecs {
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != dim {
			return nil, 0, &ai.BatchError{Index: i, Err: fmt.Errorf("dimension %d, expected %d", len(vec), dim)}
		}
		out[i] = model.ChunkEmbedding{Chunk: chunks[i], Embedding: vec}
	}
	return out, dim, nil
}

// Rebuild replaces every entry. On embedding failure the current entries
// are kept.
func (m *Memory) Rebuild(ctx context.Context, chunks []model.Chunk) error {
	entries, dim, err := m.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}
	for i := range entries {
		entries[i].Position = i
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	m.dim = dim
	m.initialized = true
	m.lastIndexed = time.Now()
	return nil
}

func (m *Memory) Add(ctx context.Context, chunks []model.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	entries, dim, err := m.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return 0, appErr.ErrNoIndex
	}
	if m.dim != 0 && dim != m.dim {
		return 0, fmt.Errorf("embedding dimension %d does not match index dimension %d", dim, m.dim)
	}
	base := len(m.entries)
	for i := range entries {
		entries[i].Position = base + i
	}
	m.entries = append(m.entries, entries...)
	m.dim = dim
	m.lastIndexed = time.Now()
	return len(entries), nil
}

type scored struct {
	idx  int
	dist float32
}

func (m *Memory) Search(ctx context.Context, query string, k int) ([]model.SearchHit, error) {
	if k <= 0 || !m.Initialized() || m.Len() == 0 {
		return []model.SearchHit{}, nil
	}
	qvec, err := ai.EmbedOne(ctx, m.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(qvec) != m.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(qvec), m.dim)
	}
	all := make([]scored, len(m.entries))
	for i := range m.entries {
		all[i] = scored{idx: i, dist: squaredL2(qvec, m.entries[i].Embedding)}
	}
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].dist < all[b].dist
	})
	if k > len(all) {
		k = len(all)
	}
	hits := make([]model.SearchHit, 0, k)
	for _, s := range all[:k] {
		hits = append(hits, model.SearchHit{Chunk: m.entries[s.idx].Chunk, Distance: s.dist})
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (m *Memory) Persist(ctx context.Context) error {
	m.mu.RLock()
	if !m.initialized {
		m.mu.RUnlock()
		return appErr.ErrNoIndex
	}
	snap := &model.IndexSnapshot{
		ModelName:     m.embedder.ModelName(),
		Dimension:     m.dim,
		LastIndexed:   m.lastIndexed,
		JournalOffset: m.journalOffset,
		Entries:       append([]model.ChunkEmbedding(nil), m.entries...),
	}
	m.mu.RUnlock()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := m.snapshots.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	logutil.GetLogger(ctx).Info("index persisted",
		zap.String("path", m.snapshots.Path()),
		zap.Int("entries", len(snap.Entries)),
	)
	return nil
}

// Load replaces the in-memory index with the snapshot. It reports false
// without error when there is nothing usable on disk.
func (m *Memory) Load(ctx context.Context) (bool, error) {
	logger := logutil.GetLogger(ctx)
	snap, err := m.snapshots.Load(ctx)
	if err != nil {
		if appErr.IsNotFound(err) {
			logger.Info("no index snapshot found", zap.String("path", m.snapshots.Path()))
			return false, nil
		}
		logger.Warn("index snapshot unreadable, starting without index", zap.String("path", m.snapshots.Path()), zap.Error(err))
		return false, nil
	}
	if snap.ModelName != m.embedder.ModelName() {
		logger.Warn("index snapshot built with another embedding model, ignoring",
			zap.String("snapshot_model", snap.ModelName),
			zap.String("model", m.embedder.ModelName()),
		)
		return false, nil
	}
	if vec, err := ai.EmbedOne(ctx, m.embedder, "dimension check"); err != nil {
		logger.Warn("cannot verify index snapshot dimension", zap.Error(err))
	} else if len(vec) != snap.Dimension {
		logger.Warn("index snapshot dimension does not match embedder, ignoring",
			zap.Int("snapshot_dimension", snap.Dimension),
			zap.Int("dimension", len(vec)),
		)
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = snap.Entries
	m.dim = snap.Dimension
	m.lastIndexed = snap.LastIndexed
	m.journalOffset = snap.JournalOffset
	m.initialized = true
	logger.Info("index loaded", zap.Int("entries", len(snap.Entries)), zap.Int("dimension", snap.Dimension))
	return true, nil
}

func (m *Memory) Stats() IndexStats {
	m.mu.RLock()
	stats := IndexStats{
		Count:       len(m.entries),
		Dimension:   m.dim,
		Initialized: m.initialized,
	}
	m.mu.RUnlock()
	stats.Bytes = dirSize(m.dir)
	return stats
}

func (m *Memory) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) LastIndexed() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastIndexed
}

// JournalOffset is the journal size already folded into the index.
func (m *Memory) JournalOffset() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.journalOffset
}

func (m *Memory) SetJournalOffset(offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journalOffset = offset
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
