package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Gemini API
	GeminiAPIKey        string
	GeminiTier          string
	GenerationModel     string
	ExtractionModel     string
	EmbeddingsModel     string

	// Corpus ingestion
	PDFPath        string
	FormsPath      string
	VectorsPath    string
	ChunksPath     string
	SkipIndexBuild bool
	MaxChunkSize   int
	ChunkOverlap   int
	EmbedBatchSize int

	// Retrieval
	PerQueryTopK int
	MaxResults   int
	MaxSources   int

	// HTTP rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// OpenTelemetry
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		GenerationModel: getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		ExtractionModel: getEnv("EXTRACTION_MODEL", "gemini-2.0-flash-lite"),
		EmbeddingsModel: getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),

		PDFPath:        getEnv("PDF_PATH", "./data/EEBC 2021.pdf"),
		FormsPath:      getEnv("FORMS_PATH", ""),
		VectorsPath:    getEnv("VECTORS_PATH", "./data/index.vectors"),
		ChunksPath:     getEnv("CHUNKS_PATH", "./data/chunks.json"),
		SkipIndexBuild: getEnvBool("SKIP_INDEX_BUILD", false),
		MaxChunkSize:   getEnvInt("MAX_CHUNK_SIZE", 1800),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 250),
		EmbedBatchSize: getEnvInt("EMBED_BATCH_SIZE", 64),

		PerQueryTopK: getEnvInt("PER_QUERY_TOP_K", 6),
		MaxResults:   getEnvInt("MAX_RESULTS", 10),
		MaxSources:   getEnvInt("MAX_SOURCES", 6),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("MAX_CHUNK_SIZE must be positive")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, MAX_CHUNK_SIZE)")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return defaultValue
}
