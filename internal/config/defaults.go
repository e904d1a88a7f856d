package config

import "time"

// Defaults used by ApplyDefaults. URLs and model names match the Hugging Face router.
const (
	DefaultProvider       = "hf-inference"
	DefaultBaseURL        = "https://router.huggingface.co/hf-inference/models"
	DefaultRouterBaseURL  = "https://router.huggingface.co/v1"
	DefaultEmbeddingModel = "intfloat/e5-small-v2"
	DefaultTextModel      = "HuggingFaceH4/zephyr-7b-beta"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8001
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(cfg.Server.RateLimitRPS) * 2
		if cfg.Server.RateLimitBurst < 1 {
			cfg.Server.RateLimitBurst = 1
		}
	}

	if cfg.HF.Provider == "" {
		cfg.HF.Provider = DefaultProvider
	}
	if cfg.HF.BaseURL == "" {
		cfg.HF.BaseURL = DefaultBaseURL
	}
	if cfg.HF.RouterBaseURL == "" {
		cfg.HF.RouterBaseURL = DefaultRouterBaseURL
	}
	if cfg.HF.EmbeddingModel == "" {
		cfg.HF.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.HF.TextModel == "" {
		cfg.HF.TextModel = DefaultTextModel
	}
	if cfg.HF.TimeoutMS == 0 {
		cfg.HF.TimeoutMS = 30000
	}
	if cfg.HF.EmbedBatchSize == 0 {
		cfg.HF.EmbedBatchSize = 32
	}
	if cfg.HF.EmbedMaxChars == 0 {
		cfg.HF.EmbedMaxChars = 4000
	}
	if cfg.HF.EmbedConcurrency == 0 {
		cfg.HF.EmbedConcurrency = 4
	}

	if cfg.Synthesis.MaxItems == 0 {
		cfg.Synthesis.MaxItems = 30
	}
	if cfg.Synthesis.MaxItemChars == 0 {
		cfg.Synthesis.MaxItemChars = 1200
	}
	if cfg.Synthesis.MaxTotalChars == 0 {
		cfg.Synthesis.MaxTotalChars = 12000
	}
	if cfg.Synthesis.MaxTokens == 0 {
		cfg.Synthesis.MaxTokens = 200
	}
	if cfg.Synthesis.RepairMaxChars == 0 {
		cfg.Synthesis.RepairMaxChars = 4000
	}

	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.DefaultCollection == "" {
		cfg.Vector.DefaultCollection = "items"
	}
	if cfg.Vector.DatabasePath == "" {
		cfg.Vector.DatabasePath = "./data/vectors.db"
	}
	if cfg.Vector.Qdrant.Host == "" {
		cfg.Vector.Qdrant.Host = "localhost"
	}
	if cfg.Vector.Qdrant.Port == 0 {
		cfg.Vector.Qdrant.Port = 6334
	}

	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = 1000
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
