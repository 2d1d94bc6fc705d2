package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/chunker"
	"github.com/H0NEYP0T-466/RAGbot/internal/config"
	"github.com/H0NEYP0T-466/RAGbot/internal/journal"
	"github.com/H0NEYP0T-466/RAGbot/internal/loader"
	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	"github.com/H0NEYP0T-466/RAGbot/internal/vectorstore"
)

type IndexState string

const (
	StateIdle       IndexState = "idle"
	StateScanning   IndexState = "scanning"
	StateLoading    IndexState = "loading"
	StateChunking   IndexState = "chunking"
	StateIndexing   IndexState = "indexing"
	StatePersisting IndexState = "persisting"
	StateFailed     IndexState = "failed"
)

type IngestConfig struct {
	DataFolder  string
	JournalMode string
}

// IngestService turns the corpus folder into index entries. The three
// writer entry points are serialized; searches keep running against the
// store while a rebuild is being embedded.
type IngestService struct {
	cfg      IngestConfig
	loaders  *loader.Registry
	splitter *chunker.Splitter
	store    *vectorstore.Memory
	journal  *journal.Journal
	pattern  string

	mu sync.Mutex

	statMu   sync.RWMutex
	state    IndexState
	docCount int
}

func NewIngestService(cfg IngestConfig, loaders *loader.Registry, splitter *chunker.Splitter, store *vectorstore.Memory, j *journal.Journal) *IngestService {
	if cfg.JournalMode == "" {
		cfg.JournalMode = config.JournalModeDelta
	}
	return &IngestService{
		cfg:      cfg,
		loaders:  loaders,
		splitter: splitter,
		store:    store,
		journal:  j,
		pattern:  "*.{" + strings.Join(loaders.Extensions(), ",") + "}",
		state:    StateIdle,
	}
}

func (s *IngestService) setState(state IndexState) {
	s.statMu.Lock()
	s.state = state
	s.statMu.Unlock()
}

func (s *IngestService) State() IndexState {
	s.statMu.RLock()
	defer s.statMu.RUnlock()
	return s.state
}

func (s *IngestService) documentCount() int {
	s.statMu.RLock()
	defer s.statMu.RUnlock()
	return s.docCount
}

func (s *IngestService) fail(err error) error {
	s.setState(StateFailed)
	return err
}

// ScanDataFolder lists supported files directly inside the data folder,
// creating the folder when it is missing.
func (s *IngestService) ScanDataFolder(ctx context.Context) ([]string, error) {
	logger := logutil.GetLogger(ctx)
	entries, err := os.ReadDir(s.cfg.DataFolder)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("data folder does not exist, creating it", zap.String("folder", s.cfg.DataFolder))
			if err := os.MkdirAll(s.cfg.DataFolder, 0o755); err != nil {
				return nil, fmt.Errorf("create data folder: %w", err)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("scan data folder: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ok, err := doublestar.Match(s.pattern, strings.ToLower(entry.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, filepath.Join(s.cfg.DataFolder, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// IndexDocuments rebuilds the whole index from the data folder.
func (s *IngestService) IndexDocuments(ctx context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexDocumentsLocked(ctx)
}

func (s *IngestService) indexDocumentsLocked(ctx context.Context) (int, int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("folder", s.cfg.DataFolder))
	start := time.Now()
	logger.Info("indexing started", zap.Int("chunk_size", s.splitter.Size()), zap.Int("chunk_overlap", s.splitter.Overlap()))

	var (
		journalDoc *model.Document
		journalEnd int64
	)
	if s.journal != nil {
		content, end, err := s.journal.ReadFrom(0)
		if err != nil {
			return 0, 0, s.fail(fmt.Errorf("read journal: %w", err))
		}
		journalEnd = end
		if strings.TrimSpace(content) != "" {
			journalDoc = &model.Document{Content: content, Source: filepath.Base(s.journal.Path()), Type: model.SourceTypeText}
		}
	}

	s.setState(StateScanning)
	files, err := s.ScanDataFolder(ctx)
	if err != nil {
		return 0, 0, s.fail(err)
	}
	if len(files) == 0 {
		logger.Warn("no documents found in data folder")
		s.setState(StateIdle)
		return 0, 0, nil
	}

	s.setState(StateLoading)
	var (
		docs           []model.Document
		loadedFiles    int
		journalScanned bool
	)
	for _, path := range files {
		if s.IsJournal(path) {
			journalScanned = true
			loadedFiles++
			if journalDoc != nil {
				docs = append(docs, *journalDoc)
			}
			continue
		}
		loaded, err := s.loaders.Load(ctx, path)
		if err != nil {
			logger.Error("failed to load document", zap.String("file", filepath.Base(path)), zap.Error(err))
			continue
		}
		logger.Debug("document loaded", zap.String("file", filepath.Base(path)), zap.Int("parts", len(loaded)))
		loadedFiles++
		docs = append(docs, loaded...)
	}
	if loadedFiles == 0 {
		logger.Error("all documents failed to load", zap.Int("files", len(files)))
		s.setState(StateIdle)
		return 0, 0, nil
	}
	// a journal outside the corpus folder is indexed with the rebuild
	if !journalScanned && journalDoc != nil {
		docs = append(docs, *journalDoc)
	}

	s.setState(StateChunking)
	chunks := s.splitter.SplitDocuments(ctx, docs)
	logger.Info("documents split", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))
	if len(chunks) == 0 {
		logger.Warn("documents produced no chunks, index left unchanged")
		s.setState(StateIdle)
		return len(files), 0, nil
	}

	s.setState(StateIndexing)
	if err := s.store.Rebuild(ctx, chunks); err != nil {
		return 0, 0, s.fail(fmt.Errorf("rebuild index: %w", err))
	}
	s.statMu.Lock()
	s.docCount = len(files)
	s.statMu.Unlock()

	s.setState(StatePersisting)
	s.store.SetJournalOffset(journalEnd)
	if err := s.store.Persist(ctx); err != nil {
		return 0, 0, s.fail(err)
	}
	s.setState(StateIdle)
	logger.Info("indexing complete",
		zap.Int("documents", len(files)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("cost", time.Since(start)),
	)
	return len(files), len(chunks), nil
}

// IndexSingleFile appends one file's chunks to the live index. Without a
// live index it falls back to a full rebuild.
func (s *IngestService) IndexSingleFile(ctx context.Context, path string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logger := logutil.GetLogger(ctx).With(zap.String("file", filepath.Base(path)))
	if !s.store.Initialized() {
		logger.Warn("no existing index found, performing full index")
		return s.indexDocumentsLocked(ctx)
	}

	s.setState(StateLoading)
	docs, err := s.loaders.Load(ctx, path)
	if err != nil {
		logger.Warn("failed to load file, index left unchanged", zap.Error(err))
		s.setState(StateIdle)
		return s.documentCount(), s.store.Stats().Count, nil
	}
	s.setState(StateChunking)
	chunks := s.splitter.SplitDocuments(ctx, docs)
	if len(chunks) == 0 {
		logger.Warn("no chunks created from file")
		s.setState(StateIdle)
		return s.documentCount(), s.store.Stats().Count, nil
	}
	added, err := s.addAndPersist(ctx, chunks, -1)
	if err != nil {
		return 0, 0, err
	}
	total := s.store.Stats().Count
	logger.Info("incremental indexing complete", zap.Int("added", added), zap.Int("total", total))
	return s.documentCount(), total, nil
}

// IndexJournal folds conversation turns back into the index. In delta mode
// only bytes written since the last committed offset are ingested; in
// full_file mode the whole journal is re-added.
func (s *IngestService) IndexJournal(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	logger := logutil.GetLogger(ctx).With(zap.String("journal", s.journal.Path()), zap.String("mode", s.cfg.JournalMode))
	if !s.store.Initialized() {
		logger.Warn("no existing index found, performing full index")
		_, chunks, err := s.indexDocumentsLocked(ctx)
		return chunks, err
	}

	s.setState(StateLoading)
	offset := s.store.JournalOffset()
	if s.cfg.JournalMode == config.JournalModeFullFile {
		offset = 0
	}
	content, end, err := s.journal.ReadFrom(offset)
	if err != nil {
		return 0, s.fail(fmt.Errorf("read journal: %w", err))
	}
	if strings.TrimSpace(content) == "" {
		s.setState(StateIdle)
		return 0, nil
	}
	doc := model.Document{
		Content: content,
		Source:  filepath.Base(s.journal.Path()),
		Type:    model.SourceTypeText,
	}
	s.setState(StateChunking)
	chunks := s.splitter.SplitDocuments(ctx, []model.Document{doc})
	if len(chunks) == 0 {
		s.setState(StateIdle)
		return 0, nil
	}
	added, err := s.addAndPersist(ctx, chunks, end)
	if err != nil {
		return 0, err
	}
	logger.Info("re-indexed conversation history", zap.Int("added", added), zap.Int64("offset", end))
	return added, nil
}

// addAndPersist appends chunks and snapshots the index. A non-negative
// journalOffset is committed with the snapshot.
func (s *IngestService) addAndPersist(ctx context.Context, chunks []model.Chunk, journalOffset int64) (int, error) {
	s.setState(StateIndexing)
	added, err := s.store.Add(ctx, chunks)
	if err != nil {
		return 0, s.fail(fmt.Errorf("add to index: %w", err))
	}
	s.setState(StatePersisting)
	if journalOffset >= 0 {
		s.store.SetJournalOffset(journalOffset)
	}
	if err := s.store.Persist(ctx); err != nil {
		return 0, s.fail(err)
	}
	s.setState(StateIdle)
	return added, nil
}

// LoadOrCreate restores the snapshot when one is usable and otherwise
// indexes the data folder.
func (s *IngestService) LoadOrCreate(ctx context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logger := logutil.GetLogger(ctx)
	ok, err := s.store.Load(ctx)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		logger.Info("no usable index found, creating new index from documents")
		return s.indexDocumentsLocked(ctx)
	}
	files, err := s.ScanDataFolder(ctx)
	if err != nil {
		return 0, 0, err
	}
	s.statMu.Lock()
	s.docCount = len(files)
	s.statMu.Unlock()
	chunks := s.store.Stats().Count
	logger.Info("loaded existing index", zap.Int("documents", len(files)), zap.Int("chunks", chunks))
	return len(files), chunks, nil
}

func (s *IngestService) Stats(_ context.Context) model.CorpusStats {
	st := s.store.Stats()
	return model.CorpusStats{
		TotalDocuments: s.documentCount(),
		TotalChunks:    st.Count,
		IndexBytes:     st.Bytes,
		LastIndexed:    s.store.LastIndexed(),
		Initialized:    st.Initialized,
		State:          string(s.State()),
	}
}

// IsJournal reports whether path is the conversation journal.
func (s *IngestService) IsJournal(path string) bool {
	if s.journal == nil {
		return false
	}
	a, err1 := filepath.Abs(path)
	b, err2 := filepath.Abs(s.journal.Path())
	return err1 == nil && err2 == nil && a == b
}

func (s *IngestService) Supported(path string) bool {
	return s.loaders.Supported(path)
}
