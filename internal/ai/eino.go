package ai

import (
	"context"
	"strings"
	"sync"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
)

type einoConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// einoEmbedProvider adapts an eino embedding component. eino binds the model
// at construction, so one embedder is kept per model name.
type einoEmbedProvider struct {
	apiKey  string
	baseURL string

	mu        sync.Mutex
	embedders map[string]einoEmbedding.Embedder
}

func (p *einoEmbedProvider) Name() string {
	return "eino"
}

func (p *einoEmbedProvider) embedder(ctx context.Context, model string) (einoEmbedding.Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.embedders[model]; ok {
		return e, nil
	}
	e, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  p.apiKey,
		BaseURL: p.baseURL,
		Model:   model,
	})
	if err != nil {
		return nil, err
	}
	p.embedders[model] = e
	return e, nil
}

func (p *einoEmbedProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	e, err := p.embedder(ctx, model)
	if err != nil {
		return nil, err
	}
	vectors, err := e.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		vec := make([]float32, len(v))
		for j, x := range v {
			vec[j] = float32(x)
		}
		out[i] = vec
	}
	return out, nil
}

func createEinoEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &einoConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &einoEmbedProvider{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		baseURL:   baseURL,
		embedders: map[string]einoEmbedding.Embedder{},
	}, nil
}

func init() {
	RegisterEmbed("eino", createEinoEmbedFactory)
}
