package journal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

const headerPrefix = "[Conversation - "

// Journal is the append-only conversation log. It lives inside the corpus
// folder so that full reindexes pick it up like any other text file.
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New makes sure the journal file exists.
func New(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("conversation journal ready", zap.String("path", path))
	return &Journal{path: path, now: time.Now}, nil
}

func (j *Journal) Path() string {
	return j.path
}

func Format(t time.Time, question, answer string) string {
	return fmt.Sprintf("%s%s]\nUser: %s\nAssistant: %s\n\n", headerPrefix, t.Format(time.RFC3339), question, answer)
}

// Append writes one record with a single write on an O_APPEND handle.
func (j *Journal) Append(ctx context.Context, question, answer string) error {
	record := Format(j.now(), question, answer)
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.WriteString(record); err != nil {
		_ = f.Close()
		return fmt.Errorf("append journal: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("appended conversation to journal",
		zap.Int("question_chars", len([]rune(question))),
		zap.Int("answer_chars", len([]rune(answer))),
	)
	return nil
}

func (j *Journal) Size() (int64, error) {
	info, err := os.Stat(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// ReadFrom returns the bytes after offset and the offset of the end of the
// file. An offset past the end means the file was truncated or replaced,
// so the whole file is returned.
func (j *Journal) ReadFrom(offset int64) (string, int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, nil
		}
		return "", 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	size := info.Size()
	if offset < 0 || offset > size {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", 0, err
	}
	data, err := io.ReadAll(io.LimitReader(f, size-offset))
	if err != nil {
		return "", 0, err
	}
	return string(data), offset + int64(len(data)), nil
}

// Turns parses the journal and returns the last limit turns, oldest first.
// A non-positive limit returns everything.
func (j *Journal) Turns(limit int) ([]model.Turn, error) {
	content, _, err := j.ReadFrom(0)
	if err != nil {
		return nil, err
	}
	turns := Parse(content)
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func Parse(content string) []model.Turn {
	var (
		turns []model.Turn
		cur   *model.Turn
		body  []string
	)
	flush := func() {
		if cur == nil {
			return
		}
		text := strings.TrimRight(strings.Join(body, "\n"), "\n")
		text = strings.TrimPrefix(text, "User: ")
		if idx := strings.Index(text, "\nAssistant: "); idx >= 0 {
			cur.Question = text[:idx]
			cur.Answer = text[idx+len("\nAssistant: "):]
		} else {
			cur.Question = text
		}
		turns = append(turns, *cur)
		cur = nil
		body = nil
	}
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, headerPrefix) && strings.HasSuffix(line, "]") {
			flush()
			ts := strings.TrimSuffix(strings.TrimPrefix(line, headerPrefix), "]")
			t, _ := time.Parse(time.RFC3339, ts)
			cur = &model.Turn{Time: t}
			continue
		}
		if cur != nil {
			body = append(body, line)
		}
	}
	flush()
	return turns
}
