package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
)

var errMissingVector = errors.New("embedder returned fewer vectors than inputs")

// taskType is fixed: documents and queries share one vector space.
const taskType = ""

func buildCacheKey(modelName, taskType, text string) (string, string, string) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + modelName + ":" + taskType + ":" + contentHash, contentHash, modelName
}

// embedMisses serves what lookup already has and forwards only the misses
// to next in one batch, in input order. store receives every fresh vector.
func embedMisses(
	ctx context.Context,
	next ai.IEmbedder,
	texts []string,
	lookup func(i int) ([]float32, bool),
	store func(i int, vec []float32),
) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i := range texts {
		if vec, ok := lookup(i); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := next.EmbedBatch(ctx, missTexts)
	if err != nil {
		var batchErr *ai.BatchError
		if errors.As(err, &batchErr) && batchErr.Index < len(missIdx) {
			return nil, &ai.BatchError{Index: missIdx[batchErr.Index], Err: batchErr.Err}
		}
		return nil, err
	}
	for j, i := range missIdx {
		if j >= len(vecs) {
			return nil, &ai.BatchError{Index: i, Err: errMissingVector}
		}
		out[i] = vecs[j]
		store(i, vecs[j])
	}
	return out, nil
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
