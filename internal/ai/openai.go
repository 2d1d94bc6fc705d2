package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultLongCatBaseURL    = "https://api.longcat.chat/openai"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultMaxRetries        = 3
)

type openAIConfig struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	HTTPReferer string  `json:"http_referer"`
	XTitle      string  `json:"x_title"`
	RPS         float64 `json:"rps"`
	Burst       int     `json:"burst"`
	MaxRetries  *int    `json:"max_retries"`
}

// openAIClient talks to any OpenAI-compatible endpoint (OpenAI, LongCat,
// OpenRouter, Ollama, vLLM).
type openAIClient struct {
	name        string
	apiKey      string
	baseURL     string
	httpReferer string
	xTitle      string
	maxRetries  int
	limiter     *rate.Limiter
	client      *http.Client
}

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	// Ollama native shape
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *openAIClient) Name() string {
	return p.name
}

func (p *openAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	body := openAIChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}
	var out openAIChatResponse
	if err := p.post(ctx, "/chat/completions", body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s response has no choices", p.name)
	}
	return &ChatResponse{
		Content: strings.TrimSpace(out.Choices[0].Message.Content),
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}, nil
}

func (p *openAIClient) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	var out openAIEmbedResponse
	if err := p.post(ctx, "/embeddings", openAIEmbedRequest{Model: model, Input: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return out.Embeddings, nil
	}
	vecs := make([][]float32, len(out.Data))
	for i, item := range out.Data {
		idx := item.Index
		if idx < 0 || idx >= len(vecs) {
			idx = i
		}
		vecs[idx] = item.Embedding
	}
	return vecs, nil
}

func (p *openAIClient) post(ctx context.Context, path string, in interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + path
	for attempt := 0; ; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Content-Type", "application/json")
		if p.httpReferer != "" {
			req.Header.Set("HTTP-Referer", p.httpReferer)
		}
		if p.xTitle != "" {
			req.Header.Set("X-Title", p.xTitle)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			if attempt < p.maxRetries && ctx.Err() == nil {
				if werr := sleepCtx(ctx, retryDelay(attempt)); werr != nil {
					return werr
				}
				continue
			}
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if attempt < p.maxRetries {
				wait := retryDelay(attempt)
				if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs >= 0 {
					wait = time.Duration(secs) * time.Second
				}
				if werr := sleepCtx(ctx, wait); werr != nil {
					return werr
				}
				continue
			}
			return fmt.Errorf("%s request failed: %s: %s", p.name, resp.Status, strings.TrimSpace(string(body)))
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return fmt.Errorf("%s request failed: %s: %s", p.name, resp.Status, strings.TrimSpace(string(body)))
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode %s response: %w", p.name, err)
		}
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newOpenAIClient(name, defaultBaseURL string, args interface{}) (*openAIClient, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	retries := defaultMaxRetries
	if cfg.MaxRetries != nil && *cfg.MaxRetries >= 0 {
		retries = *cfg.MaxRetries
	}
	client := &openAIClient{
		name:        name,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     baseURL,
		httpReferer: strings.TrimSpace(cfg.HTTPReferer),
		xTitle:      strings.TrimSpace(cfg.XTitle),
		maxRetries:  retries,
		client:      &http.Client{},
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return client, nil
}

func openAIFactories(name, baseURL string) (ChatProviderFactory, EmbedProviderFactory) {
	chat := func(args interface{}) (IChatProvider, error) {
		return newOpenAIClient(name, baseURL, args)
	}
	embed := func(args interface{}) (IEmbedProvider, error) {
		return newOpenAIClient(name, baseURL, args)
	}
	return chat, embed
}

func init() {
	for name, baseURL := range map[string]string{
		"openai":     defaultOpenAIBaseURL,
		"longcat":    defaultLongCatBaseURL,
		"openrouter": defaultOpenRouterBaseURL,
	} {
		chat, embed := openAIFactories(name, baseURL)
		Register(name, chat)
		RegisterEmbed(name, embed)
	}
}
