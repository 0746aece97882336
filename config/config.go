package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// EmbeddingConfig selects the embedding provider and model. Dimension must
// match what the model actually produces; the index pins it at first insert.
type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

// LLMConfig selects the completion provider used for answer generation.
type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float32
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int

	Embeddings EmbeddingConfig
	LLM        LLMConfig

	// IndexBackend is either "sqlite" (embedded, persisted under IndexDir)
	// or "postgres" (pgvector, reached via PostgresDSN).
	IndexBackend string
	IndexDir     string
	PostgresDSN  string
	RetrievalK   int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	ListenAddr  string
	MaxUploadMB int
}

// Load reads configuration from the environment, applying defaults for
// anything unset. A .env file in the working directory is honored when
// present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		Embeddings: EmbeddingConfig{
			Provider:  getEnv("EMBEDDING_PROVIDER", ProviderOllama),
			Model:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 768),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", ProviderOllama),
			Model:       getEnv("LLM_MODEL", "llama3.1"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
		},
		IndexBackend: getEnv("INDEX_BACKEND", BackendSQLite),
		IndexDir:     getEnv("INDEX_DIR", "./index_db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", "postgres://localhost:5432/rag?sslmode=disable"),
		RetrievalK:   getEnvInt("RETRIEVAL_K", 5),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 100),
	}
}

// Validate reports configuration problems that must abort startup. A half
// configured pipeline is never usable, so callers treat any error as fatal.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap cannot be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("retrieval k must be positive, got %d", c.RetrievalK)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embeddings.Dimension)
	}

	switch c.Embeddings.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai embedding provider selected but OPENAI_API_KEY not set")
		}
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embeddings.Provider)
	}

	switch c.LLM.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai llm provider selected but OPENAI_API_KEY not set")
		}
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}

	switch c.IndexBackend {
	case BackendSQLite:
		if c.IndexDir == "" {
			return fmt.Errorf("sqlite index backend selected but INDEX_DIR not set")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres index backend selected but POSTGRES_DSN not set")
		}
	default:
		return fmt.Errorf("unknown index backend: %s", c.IndexBackend)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float32) float32 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return fallback
}
