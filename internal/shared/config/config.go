package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	SQSQueueURL     string
	LLMProvider     string
	LLMModel        string
	EmbeddingModel  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OllamaURL       string
	VectorIndex     string
	QuotaFile       string
	EmbedBatchSize  int
	EmbedCacheSize  int
	LogLevel        string
	DatabaseURL     string
	Env             string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		SQSQueueURL:     getEnv("SQS_QUEUE_URL", ""),
		LLMProvider:     normalizeProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:        getEnv("LLM_MODEL", "gpt-3.5-turbo"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		VectorIndex:     normalizeIndexType(getEnv("VECTOR_INDEX", defaultIndexType(dbURL))),
		QuotaFile:       getEnv("QUOTA_FILE", ""),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedCacheSize:  getEnvInt("EMBED_CACHE_SIZE", 512),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     dbURL,
		Env:             env,
	}
}

// loadEnvFiles loads KEY=VALUE files without overriding variables already set.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: ignoring %s: %v", path, err)
		}
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ollama":
		return "ollama"
	case "fake", "none":
		return "fake"
	default:
		return "openai"
	}
}

// defaultIndexType keeps passages next to the documents whenever a database
// is configured, so the API and the workers read the same index.
func defaultIndexType(dbURL string) string {
	if strings.TrimSpace(dbURL) != "" {
		return "pgvector"
	}
	return "memory"
}

func normalizeIndexType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pgvector", "pg", "postgres":
		return "pgvector"
	default:
		return "memory"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}
