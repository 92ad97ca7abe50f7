// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Refiner   RefinerConfig   `yaml:"refiner"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the record database and index snapshot.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	IDMapPath       string `yaml:"idmap_path"`
}

// EmbeddingConfig holds embedding provider settings. Provider is one of
// "openai", "onnx", or "mock".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds retrieval pipeline settings. Timeouts are in seconds;
// the search timeout is deliberately tighter than the embed timeout because a
// healthy in-process index answers in milliseconds.
type RetrievalConfig struct {
	EmbedTimeoutSeconds  int `yaml:"embed_timeout_seconds"`
	SearchTimeoutSeconds int `yaml:"search_timeout_seconds"`
	TopN                 int `yaml:"top_n"`
	GroundingK           int `yaml:"grounding_k"`
	CandidateK           int `yaml:"candidate_k"`
	LexicalScanLimit     int `yaml:"lexical_scan_limit"`
}

// EmbedTimeout returns the embedding stage budget.
func (r *RetrievalConfig) EmbedTimeout() time.Duration {
	return time.Duration(r.EmbedTimeoutSeconds) * time.Second
}

// SearchTimeout returns the vector search stage budget.
func (r *RetrievalConfig) SearchTimeout() time.Duration {
	return time.Duration(r.SearchTimeoutSeconds) * time.Second
}

// RefinerConfig holds language-model refiner settings. The refiner is
// optional; when disabled every answer is the deterministic draft.
type RefinerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// Timeout returns the refinement call budget.
func (r *RefinerConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Load reads and parses the config file at path, applies defaults, and
// expands storage paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.IDMapPath = expandPath(cfg.Storage.IDMapPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
