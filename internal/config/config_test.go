// ABOUTME: Tests for YAML configuration loading
// ABOUTME: Verifies defaults, overrides and save/load round-trips

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	def := Default()
	if cfg.Chunker.MaxTokens != def.Chunker.MaxTokens {
		t.Errorf("Expected default max tokens %d, got %d", def.Chunker.MaxTokens, cfg.Chunker.MaxTokens)
	}
	if cfg.Retriever.TopK != def.Retriever.TopK {
		t.Errorf("Expected default top_k %d, got %d", def.Retriever.TopK, cfg.Retriever.TopK)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Expected default memory store, got %q", cfg.Store.Type)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexindex.yaml")
	data := `
chunker:
  max_tokens: 256
retriever:
  rerank_boost_weight: 0.1
store:
  type: sqlite
  path: /tmp/test.db
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if cfg.Chunker.MaxTokens != 256 {
		t.Errorf("Expected overridden max tokens 256, got %d", cfg.Chunker.MaxTokens)
	}
	if cfg.Retriever.BoostWeight != 0.1 {
		t.Errorf("Expected overridden boost weight 0.1, got %v", cfg.Retriever.BoostWeight)
	}
	if cfg.Store.Type != "sqlite" || cfg.Store.Path != "/tmp/test.db" {
		t.Errorf("Store override lost: %+v", cfg.Store)
	}
	// Untouched keys keep their defaults.
	if cfg.Retriever.TopK != Default().Retriever.TopK {
		t.Errorf("Partial override clobbered top_k: %d", cfg.Retriever.TopK)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("chunker: [not a map"), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected an error for malformed YAML")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lexindex.yaml")
	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.Embedder.Type = "openai"
	cfg.Embedder.Model = "text-embedding-3-small"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel lost: %q", loaded.LogLevel)
	}
	if loaded.Embedder.Type != "openai" || loaded.Embedder.Model != "text-embedding-3-small" {
		t.Errorf("Embedder config lost: %+v", loaded.Embedder)
	}
}
