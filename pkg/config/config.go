package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from .env file
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
}

// GetEmbeddingEndpoint returns the embedding server endpoint from environment
// variables. The server must accept pooled requests and pooling=none requests
// that return per-token matrices.
func GetEmbeddingEndpoint() string {
	return os.Getenv("EMBEDDING_ENDPOINT")
}

// GetOllamaHost returns the Ollama embeddings endpoint, with a local default.
func GetOllamaHost() string {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		return host
	}
	return "http://localhost:11434/api/embeddings"
}

// GetDataDir returns the root directory holding benchmark datasets.
func GetDataDir() string {
	if dir := os.Getenv("CHUNKED_EVAL_DATA_DIR"); dir != "" {
		return dir
	}
	return "datasets"
}

// GetCachePath returns the embedding cache database path.
func GetCachePath() string {
	if path := os.Getenv("CHUNKED_EVAL_CACHE"); path != "" {
		return path
	}
	return "chunked-eval-cache.db"
}
