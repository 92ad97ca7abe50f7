package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/records.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/kotae/data/indices/vectors.bin"
	}
	if cfg.Storage.IDMapPath == "" {
		cfg.Storage.IDMapPath = "/usr/local/var/kotae/data/indices/idmap.json"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.EmbedTimeoutSeconds == 0 {
		cfg.Retrieval.EmbedTimeoutSeconds = 8
	}
	if cfg.Retrieval.SearchTimeoutSeconds == 0 {
		cfg.Retrieval.SearchTimeoutSeconds = 3
	}
	if cfg.Retrieval.TopN == 0 {
		cfg.Retrieval.TopN = 3
	}
	if cfg.Retrieval.GroundingK == 0 {
		cfg.Retrieval.GroundingK = 8
	}
	if cfg.Retrieval.CandidateK == 0 {
		cfg.Retrieval.CandidateK = 20
	}
	if cfg.Retrieval.LexicalScanLimit == 0 {
		cfg.Retrieval.LexicalScanLimit = 500
	}
	if cfg.Refiner.Model == "" {
		cfg.Refiner.Model = "gpt-4o-mini"
	}
	if cfg.Refiner.TimeoutSeconds == 0 {
		cfg.Refiner.TimeoutSeconds = 20
	}
	if cfg.Refiner.MaxTokens == 0 {
		cfg.Refiner.MaxTokens = 512
	}
}
