package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float32
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type ChatResponse struct {
	Content string
	Usage   Usage
}

type IChatProvider interface {
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

type IEmbedProvider interface {
	Name() string
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// IEmbedder maps texts to vectors of a fixed dimension. Implementations must
// return exactly one vector per input or fail the whole batch.
type IEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// EmbedOne embeds a single text through e.
func EmbedOne(ctx context.Context, e IEmbedder, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embedder struct {
	provider  IEmbedProvider
	model     string
	batchSize int
}

// NewEmbedder binds a provider to a model. Inputs are sent in slices of at
// most batchSize texts; a non-positive batchSize sends everything at once.
func NewEmbedder(p IEmbedProvider, model string, batchSize int) IEmbedder {
	return &embedder{provider: p, model: model, batchSize: batchSize}
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	size := e.batchSize
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	dim := 0
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.provider.EmbedBatch(ctx, e.model, texts[start:end])
		if err != nil {
			return nil, &BatchError{Index: start, Err: err}
		}
		for i := start; i < end; i++ {
			if i-start >= len(vecs) {
				return nil, &BatchError{Index: i, Err: fmt.Errorf("provider %s returned %d vectors for %d inputs", e.provider.Name(), len(vecs), end-start)}
			}
			vec := vecs[i-start]
			if len(vec) == 0 {
				return nil, &BatchError{Index: i, Err: fmt.Errorf("empty embedding")}
			}
			if dim == 0 {
				dim = len(vec)
			} else if len(vec) != dim {
				return nil, &BatchError{Index: i, Err: fmt.Errorf("dimension %d, expected %d", len(vec), dim)}
			}
			out = append(out, vec)
		}
	}
	return out, nil
}

// dimensioned is implemented by providers whose vector size comes from
// configuration rather than from the remote model.
type dimensioned interface {
	Dimension() int
}

func (e *embedder) ModelName() string {
	name := e.provider.Name() + ":" + e.model
	if d, ok := e.provider.(dimensioned); ok {
		name += fmt.Sprintf("@%d", d.Dimension())
	}
	return name
}

type ChatProviderFactory func(args interface{}) (IChatProvider, error)
type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

var (
	chatRegistry  = map[string]ChatProviderFactory{}
	embedRegistry = map[string]EmbedProviderFactory{}
)

func Register(name string, factory ChatProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	chatRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewProvider(name string, args interface{}) (IChatProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("llm.provider is required")
	}
	factory := chatRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported llm provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode provider config: %w", err)
	}
	return nil
}
