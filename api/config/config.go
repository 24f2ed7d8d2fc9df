package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string   `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	UploadDir      string   `yaml:"upload_dir"`
	MaxUploadSize  int64    `yaml:"max_upload_size"`
	LogLevel       string   `yaml:"log_level"`
	Environment    string   `yaml:"environment"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RequestTimeout int      `yaml:"request_timeout"` // seconds

	ModelProvider   string `yaml:"model_provider"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIModel     string `yaml:"openai_model"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	GeminiModel     string `yaml:"gemini_model"`

	EmbeddingProvider  string `yaml:"embedding_provider"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	EmbedConcurrency   int    `yaml:"embed_concurrency"`
	OllamaHost         string `yaml:"ollama_host"`
	HuggingFaceToken   string `yaml:"huggingface_token"`
	HuggingFaceURL     string `yaml:"huggingface_url"`

	QAProvider      string `yaml:"qa_provider"`
	QAModel         string `yaml:"qa_model"`
	SummaryProvider string `yaml:"summary_provider"`
	SummaryModel    string `yaml:"summary_model"`

	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	SummaryChunkSize    int     `yaml:"summary_chunk_size"`
	SummaryChunkOverlap int     `yaml:"summary_chunk_overlap"`
	TopK                int     `yaml:"top_k"`
	MinConfidence       float64 `yaml:"min_confidence"`
	QASegmentSize       int     `yaml:"qa_segment_size"`

	MaintenanceSchedule string `yaml:"maintenance_schedule"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and finally environment variables (a .env file is honored).
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", cfg.MaxUploadSize)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.RequestTimeout = getEnvInt("REQUEST_TIMEOUT", cfg.RequestTimeout)

	cfg.ModelProvider = getEnv("MODEL_PROVIDER", cfg.ModelProvider)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = getEnv("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)

	cfg.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDimension = getEnvInt("EMBEDDING_DIMENSION", cfg.EmbeddingDimension)
	cfg.EmbedConcurrency = getEnvInt("EMBED_CONCURRENCY", cfg.EmbedConcurrency)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.HuggingFaceToken = getEnv("HUGGINGFACE_TOKEN", cfg.HuggingFaceToken)
	cfg.HuggingFaceURL = getEnv("HUGGINGFACE_URL", cfg.HuggingFaceURL)

	cfg.QAProvider = getEnv("QA_PROVIDER", cfg.QAProvider)
	cfg.QAModel = getEnv("QA_MODEL", cfg.QAModel)
	cfg.SummaryProvider = getEnv("SUMMARY_PROVIDER", cfg.SummaryProvider)
	cfg.SummaryModel = getEnv("SUMMARY_MODEL", cfg.SummaryModel)

	cfg.ChunkSize = getEnvInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.SummaryChunkSize = getEnvInt("SUMMARY_CHUNK_SIZE", cfg.SummaryChunkSize)
	cfg.SummaryChunkOverlap = getEnvInt("SUMMARY_CHUNK_OVERLAP", cfg.SummaryChunkOverlap)
	cfg.TopK = getEnvInt("RETRIEVAL_TOP_K", cfg.TopK)
	cfg.MinConfidence = getEnvFloat("MIN_CONFIDENCE", cfg.MinConfidence)
	cfg.QASegmentSize = getEnvInt("QA_SEGMENT_SIZE", cfg.QASegmentSize)

	if v, ok := os.LookupEnv("MAINTENANCE_SCHEDULE"); ok {
		cfg.MaintenanceSchedule = v
	}

	cfg.EmbeddingModel = defaultEmbeddingModel(cfg.EmbeddingProvider, cfg.EmbeddingModel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:           "8080",
		DBPath:         "./storage/docqa.db",
		UploadDir:      "./storage/uploads",
		MaxUploadSize:  10 * 1024 * 1024, // 10MB
		LogLevel:       "info",
		Environment:    "production",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 60,

		ModelProvider:  "anthropic",
		AnthropicModel: "claude-3-5-sonnet-20241022",
		OpenAIModel:    "gpt-4o-mini",
		GeminiModel:    "gemini-1.5-flash",

		EmbeddingProvider:  "hashing",
		EmbeddingDimension: 384,
		EmbedConcurrency:   4,
		OllamaHost:         "http://localhost:11434",
		HuggingFaceURL:     "https://api-inference.huggingface.co",

		QAProvider:      "lexical",
		QAModel:         "deepset/roberta-base-squad2",
		SummaryProvider: "frequency",
		SummaryModel:    "facebook/bart-large-cnn",

		ChunkSize:           500,
		ChunkOverlap:        300,
		SummaryChunkSize:    1000,
		SummaryChunkOverlap: 200,
		TopK:                5,
		MinConfidence:       0.05,
		QASegmentSize:       512,

		MaintenanceSchedule: "@every 1h",
	}
}

// Timeout returns the per-request deadline applied to HTTP handlers.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Validate checks value ranges and that remote providers have credentials.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if err := validateSplitter("CHUNK", c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if err := validateSplitter("SUMMARY_CHUNK", c.SummaryChunkSize, c.SummaryChunkOverlap); err != nil {
		return err
	}
	if c.TopK < 1 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be at least 1, got %d", c.TopK)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be within [0,1], got %g", c.MinConfidence)
	}
	if c.QASegmentSize <= 0 {
		return fmt.Errorf("QA_SEGMENT_SIZE must be positive, got %d", c.QASegmentSize)
	}
	if c.EmbedConcurrency <= 0 {
		return fmt.Errorf("EMBED_CONCURRENCY must be positive, got %d", c.EmbedConcurrency)
	}

	switch strings.ToLower(c.EmbeddingProvider) {
	case "hashing":
		if c.EmbeddingDimension <= 0 {
			return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai embedding provider")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini embedding provider")
		}
	case "ollama", "huggingface":
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}

	switch strings.ToLower(c.QAProvider) {
	case "lexical", "huggingface":
	default:
		return fmt.Errorf("unknown QA_PROVIDER %q", c.QAProvider)
	}

	switch strings.ToLower(c.SummaryProvider) {
	case "frequency", "huggingface":
	case "llm":
		if err := c.validateModelProvider(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown SUMMARY_PROVIDER %q", c.SummaryProvider)
	}

	return nil
}

func (c *Config) validateModelProvider() error {
	switch strings.ToLower(c.ModelProvider) {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required for the llm summary provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the llm summary provider")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the llm summary provider")
		}
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.ModelProvider)
	}
	return nil
}

func validateSplitter(prefix string, size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%s_SIZE must be positive, got %d", prefix, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%s_OVERLAP must be within [0,%d), got %d", prefix, size, overlap)
	}
	return nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func defaultEmbeddingModel(provider, model string) string {
	if model != "" {
		return model
	}
	switch strings.ToLower(provider) {
	case "openai":
		return "text-embedding-3-small"
	case "ollama":
		return "nomic-embed-text"
	case "huggingface":
		return "sentence-transformers/all-MiniLM-L6-v2"
	case "gemini":
		return "text-embedding-004"
	default:
		return "hashing-v1"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
