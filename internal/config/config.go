// Package config loads YAML configuration for the indexing and retrieval core
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ChunkerConfig configures how node bodies are split into chunks.
type ChunkerConfig struct {
	MaxTokens int `yaml:"max_tokens"`
}

// RetrieverConfig exposes the reranking heuristics.
type RetrieverConfig struct {
	TopK               int     `yaml:"top_k"`
	RerankDepth        int     `yaml:"rerank_depth"`
	BoostWeight        float64 `yaml:"rerank_boost_weight"`
	SiblingMergeWindow int     `yaml:"sibling_merge_window"`
}

// WriterConfig tunes batching and the retry budget of the index writer.
type WriterConfig struct {
	BatchSize     int `yaml:"batch_size"`
	Workers       int `yaml:"workers"`
	MaxAttempts   int `yaml:"max_attempts"`
	BaseBackoffMS int `yaml:"base_backoff_ms"`
}

// EmbedderConfig selects and configures the embedding gateway.
type EmbedderConfig struct {
	Type      string `yaml:"type"` // hashing | openai
	Dimension int    `yaml:"dimension"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Model     string `yaml:"model,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant instance.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key,omitempty"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Type   string        `yaml:"type"` // memory | sqlite | qdrant
	Path   string        `yaml:"path,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// Config is the root configuration structure.
type Config struct {
	LogLevel    string          `yaml:"log_level"`
	MetricsPort int             `yaml:"metrics_port"`
	Chunker     ChunkerConfig   `yaml:"chunker"`
	Retriever   RetrieverConfig `yaml:"retriever"`
	Writer      WriterConfig    `yaml:"writer"`
	Embedder    EmbedderConfig  `yaml:"embedder"`
	Store       StoreConfig     `yaml:"store"`
}

// Load reads a config from the given path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		MetricsPort: 9090,
		Chunker:     ChunkerConfig{MaxTokens: 512},
		Retriever: RetrieverConfig{
			TopK:               10,
			RerankDepth:        30,
			BoostWeight:        0.05,
			SiblingMergeWindow: 1,
		},
		Writer: WriterConfig{
			BatchSize:     100,
			Workers:       4,
			MaxAttempts:   5,
			BaseBackoffMS: 200,
		},
		Embedder: EmbedderConfig{Type: "hashing", Dimension: 256},
		Store:    StoreConfig{Type: "memory"},
	}
}
