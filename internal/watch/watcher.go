// Package watch reindexes corpus files as they change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

type Filter interface {
	Supported(path string) bool
	IsJournal(path string) bool
}

// Watcher turns create and write events in one folder into single-file
// reindex requests. Bursts of events for the same file collapse into one
// request once the file has been quiet for the debounce window.
type Watcher struct {
	dir      string
	filter   Filter
	enqueue  func(path string) bool
	debounce time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func New(dir string, filter Filter, debounce time.Duration, enqueue func(path string) bool) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		dir:      dir,
		filter:   filter,
		enqueue:  enqueue,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = fw
	w.done = make(chan struct{})
	go w.loop(ctx)
	logutil.GetLogger(ctx).Info("watching data folder", zap.String("folder", w.dir), zap.Duration("debounce", w.debounce))
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	logger := logutil.GetLogger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.accept(event) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) accept(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if w.filter.IsJournal(event.Name) || !w.filter.Supported(event.Name) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return true
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		logger := logutil.GetLogger(ctx).With(zap.String("file", filepath.Base(path)))
		if !w.enqueue(path) {
			logger.Warn("failed to schedule file reindex")
			return
		}
		logger.Info("file change detected, reindex scheduled")
	})
}

// Stop closes the watcher and cancels pending debounced requests.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	_ = w.watcher.Close()
	<-w.done
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
}
