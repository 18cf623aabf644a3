package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
)

// OpenAI calls an OpenAI-compatible /embeddings endpoint. Requests are paced
// by a client-side rate limiter; provider failures are classified into the
// pipeline taxonomy so the orchestrator can decide between backoff retry and
// permanent failure.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewOpenAI(apiKey, baseURL, model string, dimensions int, requestsPerSecond float64) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimensions == 0 {
		dimensions = 1536
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (s *OpenAI) Model() string {
	return s.model
}

func (s *OpenAI) Dimensions() int {
	return s.dimensions
}

// embeddingRequest is the OpenAI embedding API request body.
type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// embeddingResponse is the OpenAI embedding API response body.
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed returns one vector per input text, ordered by input index.
func (s *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := embeddingRequest{
		Input:      texts,
		Model:      s.model,
		Dimensions: s.dimensions,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Network failure: transient, retried by the orchestrator.
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w", len(texts), len(embResp.Data), pipeline.ErrProviderUnavailable)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range: %w", data.Index, pipeline.ErrProviderUnavailable)
		}
		if len(data.Embedding) != s.dimensions {
			return nil, fmt.Errorf("embedding dimension %d, want %d: %w", len(data.Embedding), s.dimensions, pipeline.ErrInvalidInput)
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}

// classifyStatus maps provider HTTP status codes onto the pipeline taxonomy.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("API error (status %d): %s: %w", status, body, pipeline.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("API error (status %d): %s: %w", status, body, pipeline.ErrProviderUnavailable)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("API error (status %d): %s: %w", status, body, pipeline.ErrInvalidInput)
	default:
		return fmt.Errorf("API error (status %d): %s", status, body)
	}
}
