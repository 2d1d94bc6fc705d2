package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultLocalDimension = 384

type localConfig struct {
	Dimension int `json:"dimension"`
}

// localEmbedProvider is a feature-hashing embedder: word unigrams and
// bigrams are hashed into signed buckets and the vector is L2 normalised.
// It needs no network and is deterministic, so texts sharing words land
// close to each other.
type localEmbedProvider struct {
	dim int
}

func NewLocalEmbedProvider(dim int) IEmbedProvider {
	if dim <= 0 {
		dim = defaultLocalDimension
	}
	return &localEmbedProvider{dim: dim}
}

func (p *localEmbedProvider) Name() string {
	return "local"
}

func (p *localEmbedProvider) Dimension() int {
	return p.dim
}

func (p *localEmbedProvider) EmbedBatch(ctx context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, p.embed(text))
	}
	return out, nil
}

func (p *localEmbedProvider) embed(text string) []float32 {
	vec := make([]float32, p.dim)
	words := tokenize(text)
	for i, w := range words {
		p.addFeature(vec, w, 1)
		if i > 0 {
			p.addFeature(vec, words[i-1]+" "+w, 0.5)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (p *localEmbedProvider) addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func createLocalEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return NewLocalEmbedProvider(cfg.Dimension), nil
}

func init() {
	RegisterEmbed("local", createLocalEmbedFactory)
}
