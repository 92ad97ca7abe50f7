package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected openai provider default, got %s", cfg.Embedding.Provider)
	}
	if cfg.Retrieval.EmbedTimeoutSeconds != 8 || cfg.Retrieval.SearchTimeoutSeconds != 3 {
		t.Errorf("unexpected timeout defaults: %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.TopN != 3 || cfg.Retrieval.GroundingK != 8 {
		t.Errorf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Refiner.Enabled {
		t.Error("refiner must default to disabled")
	}
	if cfg.Refiner.TimeoutSeconds != 20 {
		t.Errorf("unexpected refiner timeout default: %d", cfg.Refiner.TimeoutSeconds)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Server.Port = 9090
	cfg.Retrieval.TopN = 5
	ApplyDefaults(&cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("explicit port overwritten: %d", cfg.Server.Port)
	}
	if cfg.Retrieval.TopN != 5 {
		t.Errorf("explicit top_n overwritten: %d", cfg.Retrieval.TopN)
	}
}

func TestTimeoutAccessors(t *testing.T) {
	r := RetrievalConfig{EmbedTimeoutSeconds: 8, SearchTimeoutSeconds: 3}
	if r.EmbedTimeout() != 8*time.Second {
		t.Errorf("EmbedTimeout = %v", r.EmbedTimeout())
	}
	if r.SearchTimeout() != 3*time.Second {
		t.Errorf("SearchTimeout = %v", r.SearchTimeout())
	}
	ref := RefinerConfig{TimeoutSeconds: 20}
	if ref.Timeout() != 20*time.Second {
		t.Errorf("Timeout = %v", ref.Timeout())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 9191
storage:
  database_path: ./data/records.db
embedding:
  provider: mock
  dimensions: 64
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not loaded")
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port not loaded: %d", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimensions != 64 {
		t.Errorf("embedding config not loaded: %+v", cfg.Embedding)
	}
	// "./" paths resolve relative to the config directory.
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data/records.db") {
		t.Errorf("database path not expanded: %s", cfg.Storage.DatabasePath)
	}
	// Unset values still get defaults.
	if cfg.Retrieval.EmbedTimeoutSeconds != 8 {
		t.Errorf("defaults not applied: %+v", cfg.Retrieval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
