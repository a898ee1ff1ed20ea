package embeddings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"chunked-eval/pkg/config"
	"chunked-eval/pkg/ollama"
)

const (
	// DefaultBatchSize is the maximum number of texts to send in one API call
	DefaultBatchSize = 32
	// MaxRetries is the maximum number of retry attempts for failed API calls
	MaxRetries = 3
)

// Service handles embedding generation against an embedding server, with
// an Ollama fallback for pooled embeddings
type Service struct {
	baseURL     string
	httpClient  *http.Client
	batchSize   int
	model       string
	ollamaHost  string
	ollamaModel string
	retryDelay  time.Duration
}

// EmbedRequest is the request body for pooled embeddings
type EmbedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

// EmbedResponse is the server response for pooled embeddings
type EmbedResponse struct {
	Success    bool        `json:"success"`
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Count      int         `json:"count"`
}

// TokenEmbedRequest asks the server for unpooled per-token embeddings
type TokenEmbedRequest struct {
	Model   string   `json:"model"`
	Texts   []string `json:"texts"`
	Pooling string   `json:"pooling"`
}

// TokenEmbedResponse carries one embedding matrix per input text
type TokenEmbedResponse struct {
	Success         bool          `json:"success"`
	Model           string        `json:"model"`
	TokenEmbeddings [][][]float32 `json:"token_embeddings"`
	Count           int           `json:"count"`
}

// New creates a new embeddings service for the given model
func New(model string) (*Service, error) {
	return NewWithBatchSize(model, DefaultBatchSize)
}

// NewWithBatchSize creates a new embeddings service with custom batch size
func NewWithBatchSize(model string, batchSize int) (*Service, error) {
	config.LoadEnv()
	endpoint := config.GetEmbeddingEndpoint()
	svc := &Service{
		baseURL:     endpoint,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		batchSize:   batchSize,
		model:       model,
		ollamaHost:  config.GetOllamaHost(),
		ollamaModel: model,
		retryDelay:  2 * time.Second,
	}

	// Validate endpoint at initialization
	if endpoint != "" {
		if err := svc.ValidateEndpoint(); err != nil {
			return nil, fmt.Errorf("embeddings endpoint validation failed: %w", err)
		}
		log.Printf("✅ Embeddings endpoint validated: %s", endpoint)
	} else {
		log.Printf("⚠️  EMBEDDING_ENDPOINT not set, pooled embeddings fall back to Ollama")
	}

	return svc, nil
}

// Model returns the model name requests are issued for
func (s *Service) Model() string {
	return s.model
}

// GetBatchSize returns the configured batch size
func (s *Service) GetBatchSize() int {
	return s.batchSize
}

// SetTimeout sets the HTTP client timeout
func (s *Service) SetTimeout(timeout time.Duration) {
	s.httpClient.Timeout = timeout
}

// EmbedText returns a pooled embedding for a single text
func (s *Service) EmbedText(text string) ([]float32, error) {
	embeddings, err := s.EmbedTexts([]string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedTexts returns pooled embeddings for multiple texts with automatic batching
func (s *Service) EmbedTexts(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if s.baseURL != "" {
		var allEmbeddings [][]float32
		// Process in chunks to respect API batch size limits
		for i := 0; i < len(texts); i += s.batchSize {
			end := i + s.batchSize
			if end > len(texts) {
				end = len(texts)
			}

			chunk := texts[i:end]
			embeddings, err := s.embedChunkWithRetry(chunk)
			if err != nil {
				return nil, fmt.Errorf("chunk %d-%d failed: %w", i, end, err)
			}

			allEmbeddings = append(allEmbeddings, embeddings...)
		}
		return allEmbeddings, nil
	}

	// Fallback to Ollama
	var allEmbeddings [][]float32
	for _, text := range texts {
		embedding, err := ollama.GetOllamaEmbedding(text, s.ollamaModel, s.ollamaHost)
		if err != nil {
			return nil, fmt.Errorf("failed to get ollama embedding: %w", err)
		}
		allEmbeddings = append(allEmbeddings, embedding)
	}
	return allEmbeddings, nil
}

// EmbedTokens returns one embedding per input token for each text. Late
// chunking needs unpooled output, which Ollama does not expose, so this
// requires the primary endpoint.
func (s *Service) EmbedTokens(texts []string) ([][][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if s.baseURL == "" {
		return nil, fmt.Errorf("token-level embeddings require EMBEDDING_ENDPOINT, Ollama fallback only supports pooled output")
	}

	var all [][][]float32
	for i := 0; i < len(texts); i += s.batchSize {
		end := i + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		chunk := texts[i:end]
		matrices, err := s.embedTokenChunkWithRetry(chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d-%d failed: %w", i, end, err)
		}
		all = append(all, matrices...)
	}
	return all, nil
}

// embedChunk processes a single batch of texts against the embedding server
func (s *Service) embedChunk(texts []string) ([][]float32, error) {
	reqBody := EmbedRequest{
		Model: s.model,
		Texts: texts,
	}

	var resp EmbedResponse
	if err := s.post(reqBody, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("API request failed")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// embedTokenChunk processes a single batch of texts asking for unpooled output
func (s *Service) embedTokenChunk(texts []string) ([][][]float32, error) {
	reqBody := TokenEmbedRequest{
		Model:   s.model,
		Texts:   texts,
		Pooling: "none",
	}

	var resp TokenEmbedResponse
	if err := s.post(reqBody, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("API request failed")
	}
	if len(resp.TokenEmbeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d token embedding matrices, got %d", len(texts), len(resp.TokenEmbeddings))
	}
	return resp.TokenEmbeddings, nil
}

func (s *Service) embedChunkWithRetry(texts []string) ([][]float32, error) {
	var lastErr error
	for retry := 0; retry < MaxRetries; retry++ {
		if retry > 0 {
			backoff := time.Duration(retry) * s.retryDelay
			log.Printf("Embedding request retry %d, waiting %v...", retry+1, backoff)
			time.Sleep(backoff)
		}
		embeddings, err := s.embedChunk(texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("embedding request failed after %d attempts: %w", MaxRetries, lastErr)
}

func (s *Service) embedTokenChunkWithRetry(texts []string) ([][][]float32, error) {
	var lastErr error
	for retry := 0; retry < MaxRetries; retry++ {
		if retry > 0 {
			backoff := time.Duration(retry) * s.retryDelay
			log.Printf("Token embedding request retry %d, waiting %v...", retry+1, backoff)
			time.Sleep(backoff)
		}
		matrices, err := s.embedTokenChunk(texts)
		if err == nil {
			return matrices, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("token embedding request failed after %d attempts: %w", MaxRetries, lastErr)
}

// post sends a JSON request to the embedding server and decodes the response
func (s *Service) post(reqBody, respBody interface{}) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", s.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ValidateEndpoint checks if the embeddings endpoint is accessible
func (s *Service) ValidateEndpoint() error {
	testReq := EmbedRequest{
		Model: s.model,
		Texts: []string{"test"},
	}

	jsonBody, err := json.Marshal(testReq)
	if err != nil {
		return fmt.Errorf("failed to marshal test request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", s.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create test request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Use a shorter timeout for validation
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// SetBaseURL overrides the embedding server endpoint (used by tests)
func (s *Service) SetBaseURL(url string) {
	s.baseURL = url
}
