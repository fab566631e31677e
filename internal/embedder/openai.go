package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/benvenker/neumann/internal/config"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// BatchCeiling is the provider's maximum number of texts per request.
	// Larger inputs are split into sequential sub-batches.
	BatchCeiling = 2048

	defaultBaseURL = "https://api.openai.com/v1"
	requestTimeout = 60 * time.Second
)

// OpenAIClient implements Embedder against the OpenAI embeddings API.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	policy     Policy
	dims       map[string]int
	cache      *Cache
	logger     *slog.Logger
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a different API root. Tests use this to
// target a local fixture server.
func WithBaseURL(baseURL string) Option {
	return func(c *OpenAIClient) { c.baseURL = baseURL }
}

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAIClient) { c.httpClient = hc }
}

// WithRetryPolicy substitutes the retry/backoff policy.
func WithRetryPolicy(p Policy) Option {
	return func(c *OpenAIClient) { c.policy = p }
}

// WithDimensions injects the known-model dimension table used for response
// validation. Models absent from the table skip dimension validation.
func WithDimensions(dims map[string]int) Option {
	return func(c *OpenAIClient) { c.dims = dims }
}

// WithCache attaches an embedding cache.
func WithCache(cache *Cache) Option {
	return func(c *OpenAIClient) { c.cache = cache }
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *OpenAIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewOpenAI creates an embedding client for the OpenAI API.
func NewOpenAI(apiKey string, opts ...Option) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key not set", ErrProvider)
	}

	c := &OpenAIClient{
		apiKey:     apiKey,
		model:      DefaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		policy:     DefaultPolicy(),
		dims:       DefaultDimensions(),
		logger:     slog.Default().With("component", "embedder"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FromConfig builds the production embedder from runtime configuration.
func FromConfig(cfg *config.Config) (*OpenAIClient, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	return NewOpenAI(cfg.OpenAIAPIKey,
		WithModel(cfg.EmbeddingModel),
		WithCache(NewCache(10000)),
	)
}

// Model returns the configured embedding model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Close releases idle connections.
func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// EmbedTexts embeds texts in input order, batching at the provider ceiling and
// consulting the cache per text. Sub-batches are dispatched sequentially so
// result ordering never depends on scheduling.
func (c *OpenAIClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))

	// Resolve cache hits first; only misses go to the provider.
	var missIdx []int
	for i, text := range texts {
		if c.cache != nil {
			if vec, ok := c.cache.Get(ComputeHash(text)); ok {
				results[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missIdx); start += BatchCeiling {
		end := start + BatchCeiling
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batchIdx := missIdx[start:end]
		batch := make([]string, len(batchIdx))
		for i, idx := range batchIdx {
			batch[i] = texts[idx]
		}

		vectors, err := retryWithBackoff(ctx, c.policy, func() ([][]float32, error) {
			return c.callAPI(ctx, batch)
		})
		if err != nil {
			if IsTransient(err) {
				// Retries exhausted; surface as a provider failure.
				err = fmt.Errorf("%w: retries exhausted: %v", ErrProvider, err)
			}
			return nil, err
		}

		for i, idx := range batchIdx {
			results[idx] = vectors[i]
			if c.cache != nil {
				c.cache.Set(ComputeHash(batch[i]), vectors[i])
			}
		}
	}

	return results, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// callAPI performs one embeddings request and validates the response
// cardinality and vector dimensions.
func (c *OpenAIClient) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decoding.
	case resp.StatusCode == http.StatusTooManyRequests:
		drainBody(resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout:
		drainBody(resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrTimeout, resp.StatusCode)
	default:
		// Auth failures, malformed requests, and server errors are not
		// retried; the caller sees them immediately.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var apiResp embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: requested %d, got %d", ErrCountMismatch, len(texts), len(apiResp.Data))
	}

	// The API documents index-annotated rows; order by index to be safe.
	sort.Slice(apiResp.Data, func(i, j int) bool { return apiResp.Data[i].Index < apiResp.Data[j].Index })

	expected, known := c.dims[c.model]
	vectors := make([][]float32, len(apiResp.Data))
	for i, row := range apiResp.Data {
		if known && len(row.Embedding) != expected {
			return nil, fmt.Errorf("%w: model %s expects %d dimensions, got %d",
				ErrDimensionMismatch, c.model, expected, len(row.Embedding))
		}
		vectors[i] = row.Embedding
	}

	return vectors, nil
}

func drainBody(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 4096))
}
