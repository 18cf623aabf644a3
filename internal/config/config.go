package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Host        string
	Port        string
	Environment string
	GinMode     string

	// Database
	DatabaseURL string

	// Embedding Service (OpenAI compatible)
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingBatchSize  int
	EmbeddingRPS        float64

	// File Storage
	StoragePath   string
	MaxUploadSize int64

	// Processing
	ParserVersion  string
	ChunkerName    string
	ChunkerVersion string
	TokenCounter   string
	MaxChunkTokens int

	// Worker Pool
	WorkerCount    int
	PollInterval   time.Duration
	LeaseTTL       time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

func Load() *Config {
	return &Config{
		Host:        getEnv("HOST", "0.0.0.0"),
		Port:        getEnv("PORT", "8088"),
		Environment: getEnv("ENVIRONMENT", "development"),
		GinMode:     getEnv("GIN_MODE", "debug"),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/navigator?sslmode=disable"),

		EmbeddingAPIKey:     getEnv("OPENAI_API_KEY", ""),
		EmbeddingBaseURL:    getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: int(getEnvInt64("EMBEDDING_DIMENSIONS", 1536)),
		EmbeddingBatchSize:  int(getEnvInt64("EMBEDDING_BATCH_SIZE", 64)),
		EmbeddingRPS:        getEnvFloat("EMBEDDING_RPS", 5),

		StoragePath:   getEnv("STORAGE_PATH", "./storage"),
		MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", 50*1024*1024), // 50MB

		ParserVersion:  getEnv("PARSER_VERSION", "v1"),
		ChunkerName:    getEnv("CHUNKER_NAME", "markdown"),
		ChunkerVersion: getEnv("CHUNKER_VERSION", "v1"),
		TokenCounter:   getEnv("TOKEN_COUNTER", "cl100k_base"),
		MaxChunkTokens: int(getEnvInt64("MAX_CHUNK_TOKENS", 512)),

		WorkerCount:    int(getEnvInt64("WORKER_COUNT", 4)),
		PollInterval:   getEnvDuration("POLL_INTERVAL", 2*time.Second),
		LeaseTTL:       getEnvDuration("LEASE_TTL", 2*time.Minute),
		MaxRetries:     int(getEnvInt64("MAX_RETRIES", 3)),
		RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", 5*time.Second),
		RetryMaxDelay:  getEnvDuration("RETRY_MAX_DELAY", 5*time.Minute),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
