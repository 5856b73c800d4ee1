package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the lexrag stack configuration. All three binaries read the
// same file; each picks the sections it needs.
type Config struct {
	API        HTTPConfig       `yaml:"api"`
	App        AppConfig        `yaml:"app"`
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Cache      CacheConfig      `yaml:"cache"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings for the retrieval API.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// OpenSearchConfig holds index store connection and mapping settings.
type OpenSearchConfig struct {
	Endpoint         string `yaml:"endpoint"`
	Index            string `yaml:"index"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	VectorDim        int    `yaml:"vector_dim"`
	TextField        string `yaml:"text_field"`
	EmbeddingField   string `yaml:"embedding_field"`
}

// EmbeddingConfig holds the OpenAI-compatible embedding provider settings.
// Ollama's /v1 endpoint is a valid base_url.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Provider   string `yaml:"provider"`
}

// CacheConfig holds the optional Redis embedding cache settings.
// The cache is disabled when addrs is empty.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"` // 0 keeps cached embeddings forever
}

// IngestConfig holds corpus ingestion settings.
type IngestConfig struct {
	CorpusDir    string `yaml:"corpus_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Workers      int    `yaml:"workers"`
	BatchSize    int    `yaml:"batch_size"`
	MetricsPort  int    `yaml:"metrics_port"` // 0 disables the ingester metrics endpoint
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	TopK    int `yaml:"top_k"`
	MaxTopK int `yaml:"max_top_k"`
}

// AppConfig holds the chat application settings.
type AppConfig struct {
	Port               int    `yaml:"port"`
	APIURL             string `yaml:"api_url"`
	OllamaURL          string `yaml:"ollama_url"`
	Model              string `yaml:"model"`
	SearchTimeoutSec   int    `yaml:"search_timeout_sec"`
	GenerateTimeoutSec int    `yaml:"generate_timeout_sec"`
	PullTimeoutSec     int    `yaml:"pull_timeout_sec"`
	ContextPassages    int    `yaml:"context_passages"`
	SystemPrompt       string `yaml:"system_prompt"`
	ReadTimeoutSec     int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int    `yaml:"write_timeout_sec"`
	ShutdownSec        int    `yaml:"shutdown_timeout_sec"`
}

// DefaultSystemPrompt instructs the model to answer from the retrieved
// context only, in the stack's Thai PDPA assistant persona.
const DefaultSystemPrompt = "คุณเป็นผู้เชี่ยวชาญด้านกฎหมายคุ้มครองข้อมูลส่วนบุคคล (PDPA) " +
	"จะตอบคำถามโดยใช้ข้อมูลที่ให้มาเท่านั้น"

// Load reads configuration from a YAML file by environment name (local, docker, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values. The defaults mirror
// the deployment contract: API on 8000, app on 8501, index store and model
// endpoints taken from the well-known environment variables.
func (c *Config) ApplyDefaults() {
	if c.API.Port <= 0 {
		c.API.Port = 8000
	}
	if c.API.ReadTimeoutSec <= 0 {
		c.API.ReadTimeoutSec = 10
	}
	if c.API.WriteTimeoutSec <= 0 {
		c.API.WriteTimeoutSec = 35
	}
	if c.API.ShutdownSec <= 0 {
		c.API.ShutdownSec = 10
	}

	if c.OpenSearch.Endpoint == "" {
		c.OpenSearch.Endpoint = envOr("OPENSEARCH_ENDPOINT", "http://opensearch:9200")
	}
	if c.OpenSearch.Index == "" {
		c.OpenSearch.Index = envOr("OPENSEARCH_INDEX", "webinar_pdf_index")
	}
	if c.OpenSearch.ReadinessTimeout <= 0 {
		c.OpenSearch.ReadinessTimeout = 300
	}
	if c.OpenSearch.VectorDim <= 0 {
		c.OpenSearch.VectorDim = 1024
	}
	if c.OpenSearch.TextField == "" {
		c.OpenSearch.TextField = "content"
	}
	if c.OpenSearch.EmbeddingField == "" {
		c.OpenSearch.EmbeddingField = "embedding"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}

	if c.Ingest.CorpusDir == "" {
		c.Ingest.CorpusDir = "pdf_corpus"
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 512
	}
	if c.Ingest.ChunkOverlap <= 0 {
		c.Ingest.ChunkOverlap = 128
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 32
	}

	if c.Search.TopK <= 0 {
		c.Search.TopK = 3
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 20
	}

	if c.App.Port <= 0 {
		c.App.Port = 8501
	}
	if c.App.APIURL == "" {
		c.App.APIURL = envOr("API_URL", "http://api:8000")
	}
	if c.App.OllamaURL == "" {
		c.App.OllamaURL = envOr("OLLAMA_URL", "http://ollama:11434")
	}
	if c.App.Model == "" {
		c.App.Model = envOr("MODEL_NAME", "qwen2:0.5b")
	}
	if c.App.SearchTimeoutSec <= 0 {
		c.App.SearchTimeoutSec = 30
	}
	if c.App.GenerateTimeoutSec <= 0 {
		c.App.GenerateTimeoutSec = 120
	}
	if c.App.PullTimeoutSec <= 0 {
		c.App.PullTimeoutSec = 600
	}
	if c.App.ContextPassages <= 0 {
		c.App.ContextPassages = 2
	}
	if c.App.SystemPrompt == "" {
		c.App.SystemPrompt = DefaultSystemPrompt
	}
	if c.App.ReadTimeoutSec <= 0 {
		c.App.ReadTimeoutSec = 10
	}
	if c.App.WriteTimeoutSec <= 0 {
		c.App.WriteTimeoutSec = 150
	}
	if c.App.ShutdownSec <= 0 {
		c.App.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535, got %d", c.API.Port)
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port must be between 1 and 65535, got %d", c.App.Port)
	}
	if !strings.HasPrefix(c.OpenSearch.Endpoint, "http://") &&
		!strings.HasPrefix(c.OpenSearch.Endpoint, "https://") {
		return fmt.Errorf("opensearch.endpoint must be an http(s) URL, got %q", c.OpenSearch.Endpoint)
	}
	if c.OpenSearch.Index == "" {
		return fmt.Errorf("opensearch.index is required")
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf(
			"ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize,
		)
	}
	if c.Search.TopK > c.Search.MaxTopK {
		return fmt.Errorf(
			"search.top_k (%d) must not exceed search.max_top_k (%d)",
			c.Search.TopK, c.Search.MaxTopK,
		)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
