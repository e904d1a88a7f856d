// Package config provides configuration loading and structs for the kangae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is built once at startup
// and passed by pointer; nothing mutates it afterwards.
type Config struct {
	Debug     bool            `yaml:"debug" env:"DEBUG"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	HF        HFConfig        `yaml:"hf"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Vector    VectorConfig    `yaml:"vector"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host" env:"HOST"`
	Port           int           `yaml:"port" env:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT"`
	CORSOrigins    []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// DebugEndpoints exposes the unauthenticated /debug/secret and /debug/hf routes.
	DebugEndpoints bool `yaml:"debug_endpoints" env:"DEBUG_ENDPOINTS"`
}

// AuthConfig holds the shared secret every protected route requires.
type AuthConfig struct {
	SharedSecret string `yaml:"shared_secret" env:"AI_SHARED_SECRET"`
}

// HFConfig holds the inference provider settings.
type HFConfig struct {
	Token              string   `yaml:"token" env:"HF_TOKEN"`
	Provider           string   `yaml:"provider" env:"HF_PROVIDER"`
	BaseURL            string   `yaml:"base_url" env:"HF_BASE_URL"`
	RouterBaseURL      string   `yaml:"router_base_url" env:"HF_ROUTER_BASE_URL"`
	EmbeddingModel     string   `yaml:"embedding_model" env:"HF_EMBEDDING_MODEL"`
	TextModel          string   `yaml:"text_model" env:"HF_TEXT_MODEL"`
	TextModelFallbacks []string `yaml:"text_model_fallbacks" env:"HF_TEXT_MODEL_FALLBACKS"`
	TimeoutMS          int      `yaml:"timeout_ms" env:"HF_TIMEOUT_MS"`
	EmbedBatchSize     int      `yaml:"embed_batch_size" env:"HF_EMBED_BATCH_SIZE"`
	EmbedMaxChars      int      `yaml:"embed_max_chars" env:"HF_EMBED_MAX_CHARS"`
	EmbedConcurrency   int      `yaml:"embed_concurrency" env:"HF_EMBED_CONCURRENCY"`
}

// Timeout returns the per-call upstream timeout.
func (h *HFConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutMS) * time.Millisecond
}

// TextModelCandidates returns the primary text model followed by its fallbacks,
// de-duplicated in insertion order. Blank entries are skipped.
func (h *HFConfig) TextModelCandidates() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		out = append(out, m)
	}
	add(h.TextModel)
	for _, m := range h.TextModelFallbacks {
		add(m)
	}
	return out
}

// SynthesisConfig holds budgeting caps and generation parameters for /synthesize.
// An unset or zero cap takes its default; a negative cap disables it.
type SynthesisConfig struct {
	MaxItems      int `yaml:"max_items" env:"SYNTH_MAX_ITEMS"`
	MaxItemChars  int `yaml:"max_item_chars" env:"SYNTH_MAX_ITEM_CHARS"`
	MaxTotalChars int `yaml:"max_total_chars" env:"SYNTH_MAX_TOTAL_CHARS"`
	MaxTokens     int `yaml:"max_tokens" env:"SYNTH_MAX_TOKENS"`
	// Temperature is a pointer so that an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature" env:"SYNTH_TEMPERATURE"`
	// RepairMaxChars bounds how much invalid output is echoed back in the repair prompt.
	RepairMaxChars int `yaml:"repair_max_chars" env:"SYNTH_REPAIR_MAX_CHARS"`
}

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.3

// TemperatureOrDefault returns the configured temperature, or DefaultTemperature when unset.
func (s *SynthesisConfig) TemperatureOrDefault() float64 {
	if s.Temperature != nil {
		return *s.Temperature
	}
	return DefaultTemperature
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	Backend           string       `yaml:"backend" env:"VECTOR_BACKEND"`
	DefaultCollection string       `yaml:"default_collection" env:"VECTOR_COLLECTION"`
	DatabasePath      string       `yaml:"database_path" env:"VECTOR_DB_PATH"`
	Qdrant            QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds the Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host" env:"QDRANT_HOST"`
	Port   int    `yaml:"port" env:"QDRANT_PORT"`
	APIKey string `yaml:"api_key" env:"QDRANT_API_KEY"`
	UseTLS bool   `yaml:"use_tls" env:"QDRANT_USE_TLS"`
}

// CacheConfig configures the query-embedding cache. An empty Redis address selects
// the in-process LRU.
type CacheConfig struct {
	Size  int           `yaml:"size" env:"EMBED_CACHE_SIZE"`
	TTL   time.Duration `yaml:"ttl" env:"EMBED_CACHE_TTL"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH"`
}

// EnabledOrDefault returns whether metrics are served; defaults to true when unset.
func (m *MetricsConfig) EnabledOrDefault() bool {
	if m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// Load builds the configuration in layers: the YAML file at path (skipped when path is
// empty), then environment overrides, then defaults for anything still unset.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Vector.DatabasePath = expandPath(cfg.Vector.DatabasePath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports structural problems. Missing credentials are not errors here; they
// surface per request so that /health and the debug routes keep working.
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case "memory", "sqlite", "qdrant":
	default:
		return fmt.Errorf("unknown vector backend: %s (supported: memory, sqlite, qdrant)", c.Vector.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if t := c.Synthesis.TemperatureOrDefault(); t < 0 || t > 2 {
		return fmt.Errorf("synthesis temperature must be between 0 and 2, got %g", t)
	}
	if c.HF.TimeoutMS <= 0 {
		return fmt.Errorf("hf timeout must be positive")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
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
