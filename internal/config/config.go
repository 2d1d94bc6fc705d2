package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const DefaultSystemPrompt = "You are a helpful AI assistant. Answer questions based on the provided context documents. " +
	"If the answer isn't in the context, say so clearly. Be concise and accurate."

const (
	JournalModeDelta    = "delta"
	JournalModeFullFile = "full_file"
)

type Config struct {
	Host            string           `json:"host"`
	Port            int              `json:"port"`
	DataFolder      string           `json:"data_folder"`
	IndexDir        string           `json:"index_dir"`
	JournalFile     string           `json:"journal_file"`
	ChunkSize       int              `json:"chunk_size"`
	ChunkOverlap    int              `json:"chunk_overlap"`
	SimilarityK     int              `json:"similarity_k"`
	LLM             LLMConfig        `json:"llm"`
	Embedding       EmbeddingConfig  `json:"embedding"`
	Reindex         ReindexConfig    `json:"reindex"`
	CORSOrigins     []string         `json:"cors_origins"`
	ChatRateLimitMs int              `json:"chat_rate_limit_ms"`
	LogConfig       logger.LogConfig `json:"log_config"`
}

type LLMConfig struct {
	Provider     string                 `json:"provider"`
	Model        string                 `json:"model"`
	Temperature  *float32               `json:"temperature"`
	MaxTokens    int                    `json:"max_tokens"`
	Timeout      int                    `json:"timeout"`
	SystemPrompt string                 `json:"system_prompt"`
	Data         map[string]interface{} `json:"data"`
}

type EmbeddingProviderConfig struct {
	Provider string                 `json:"provider"`
	Model    string                 `json:"model"`
	Data     map[string]interface{} `json:"data"`
}

type EmbeddingConfig struct {
	EmbeddingProviderConfig
	Dimension int                       `json:"dimension"`
	BatchSize int                       `json:"batch_size"`
	Fallback  []EmbeddingProviderConfig `json:"fallback"`
	Cache     EmbeddingCacheConfig      `json:"cache"`
}

type EmbeddingCacheConfig struct {
	LRUSize    int         `json:"lru_size"`
	LRUTTL     int         `json:"lru_ttl"`
	DB         bool        `json:"db"`
	MaxAgeDays int         `json:"max_age_days"`
	Redis      RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	TTL      int    `json:"ttl"`
}

type ReindexConfig struct {
	QueueSize       int    `json:"queue_size"`
	Timeout         int    `json:"timeout"`
	JournalMode     string `json:"journal_mode"`
	Cron            string `json:"cron"`
	CacheCleanCron  string `json:"cache_clean_cron"`
	Watch           bool   `json:"watch"`
	WatchDebounceMs int    `json:"watch_debounce_ms"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	temp := float32(0.7)
	return &Config{
		Host:         "0.0.0.0",
		Port:         8000,
		DataFolder:   "./data",
		IndexDir:     "./index",
		ChunkSize:    1000,
		ChunkOverlap: 200,
		SimilarityK:  5,
		LLM: LLMConfig{
			Provider:     "longcat",
			Model:        "LongCat-Flash-Chat",
			Temperature:  &temp,
			MaxTokens:    2000,
			Timeout:      60,
			SystemPrompt: DefaultSystemPrompt,
		},
		Embedding: EmbeddingConfig{
			EmbeddingProviderConfig: EmbeddingProviderConfig{Provider: "local"},
			Dimension:               384,
			BatchSize:               64,
			Cache: EmbeddingCacheConfig{
				LRUSize:    4096,
				LRUTTL:     3600,
				MaxAgeDays: 30,
			},
		},
		Reindex: ReindexConfig{
			QueueSize:       16,
			Timeout:         300,
			JournalMode:     JournalModeDelta,
			WatchDebounceMs: 500,
		},
		CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		LogConfig: logger.LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads path (json, toml or yaml, chosen by extension) over the
// defaults, applies environment overrides and validates the result. An
// empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		if err := decode(path, raw, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, raw []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		m := map[string]interface{}{}
		if err := toml.Unmarshal(raw, &m); err != nil {
			return err
		}
		return roundTrip(m, cfg)
	case ".yaml", ".yml":
		m := map[string]interface{}{}
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return err
		}
		return roundTrip(m, cfg)
	default:
		return json.Unmarshal(raw, cfg)
	}
}

func roundTrip(src map[string]interface{}, dst *Config) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RAGBOT_DATA_FOLDER"); v != "" {
		c.DataFolder = v
	}
	if v := os.Getenv("RAGBOT_INDEX_DIR"); v != "" {
		c.IndexDir = v
	}
	llmKey := os.Getenv("LONGCAT_API_KEY")
	if strings.EqualFold(c.LLM.Provider, "gemini") {
		llmKey = os.Getenv("GEMINI_API_KEY")
	}
	c.LLM.Data = fillAPIKey(c.LLM.Data, llmKey)
	c.Embedding.Data = fillAPIKey(c.Embedding.Data, os.Getenv("EMBEDDING_API_KEY"))
}

func fillAPIKey(data map[string]interface{}, key string) map[string]interface{} {
	if key == "" {
		return data
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	if v, _ := data["api_key"].(string); strings.TrimSpace(v) == "" {
		data["api_key"] = key
	}
	return data
}

func (c *Config) normalize() error {
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive")
	}
	if c.DataFolder == "" {
		return fmt.Errorf("data_folder is required")
	}
	if c.IndexDir == "" {
		return fmt.Errorf("index_dir is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.SimilarityK <= 0 {
		return fmt.Errorf("similarity_k must be positive")
	}
	if c.JournalFile == "" {
		c.JournalFile = filepath.Join(c.DataFolder, "history.txt")
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "longcat"
	}
	if c.LLM.SystemPrompt == "" {
		c.LLM.SystemPrompt = DefaultSystemPrompt
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 2000
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 60
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Reindex.QueueSize <= 0 {
		c.Reindex.QueueSize = 16
	}
	if c.Reindex.Timeout <= 0 {
		c.Reindex.Timeout = 300
	}
	switch c.Reindex.JournalMode {
	case "":
		c.Reindex.JournalMode = JournalModeDelta
	case JournalModeDelta, JournalModeFullFile:
	default:
		return fmt.Errorf("reindex.journal_mode must be %s or %s", JournalModeDelta, JournalModeFullFile)
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
