package journal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(context.Background(), filepath.Join(t.TempDir(), "data", "history.txt"))
	require.NoError(t, err)
	j.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return j
}

func TestAppendFormat(t *testing.T) {
	j := newJournal(t)
	require.NoError(t, j.Append(context.Background(), "What colour is the sky?", "Blue."))
	data, err := os.ReadFile(j.Path())
	require.NoError(t, err)
	assert.Equal(t, "[Conversation - 2024-05-01T12:00:00Z]\nUser: What colour is the sky?\nAssistant: Blue.\n\n", string(data))
}

func TestReadFromOffsets(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Append(ctx, "q1", "a1"))
	first, off, err := j.ReadFrom(0)
	require.NoError(t, err)
	assert.Contains(t, first, "q1")

	require.NoError(t, j.Append(ctx, "q2", "a2"))
	delta, end, err := j.ReadFrom(off)
	require.NoError(t, err)
	assert.NotContains(t, delta, "q1")
	assert.Contains(t, delta, "User: q2")

	empty, same, err := j.ReadFrom(end)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, end, same)

	all, _, err := j.ReadFrom(end + 1000)
	require.NoError(t, err)
	assert.Contains(t, all, "q1")
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.Append(ctx, "question", "answer"))
		}()
	}
	wg.Wait()
	turns, err := j.Turns(0)
	require.NoError(t, err)
	require.Len(t, turns, 20)
	for _, turn := range turns {
		assert.Equal(t, "question", turn.Question)
		assert.Equal(t, "answer", turn.Answer)
	}
}

func TestTurnsMultilineAndLimit(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Append(ctx, "first", "line one\n\nline two"))
	require.NoError(t, j.Append(ctx, "second", "ok"))

	turns, err := j.Turns(0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "line one\n\nline two", turns[0].Answer)
	assert.True(t, turns[0].Time.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	last, err := j.Turns(1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "second", last[0].Question)
}
