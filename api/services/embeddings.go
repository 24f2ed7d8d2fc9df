package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/local/docqa/api/config"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// EmbeddingProvider is the interface for embedding providers
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetDimension() int
	GetModelName() string
}

// HashingEmbedding maps word tokens into a fixed number of signed buckets.
// It needs no model download or network access.
type HashingEmbedding struct {
	Dimension int
}

// OpenAIEmbedding implements OpenAI embeddings
type OpenAIEmbedding struct {
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	client    *apiClient
}

// OllamaEmbedding implements Ollama local embeddings
type OllamaEmbedding struct {
	Host      string
	Model     string
	Dimension int
	client    *apiClient
}

// HuggingFaceEmbedding calls the Inference API feature-extraction pipeline
// (sentence-transformers models).
type HuggingFaceEmbedding struct {
	Token     string
	Model     string
	BaseURL   string
	Dimension int
	client    *apiClient
}

// GeminiEmbedding implements Gemini embeddings through the genai SDK
type GeminiEmbedding struct {
	APIKey    string
	Model     string
	Dimension int

	timeout     time.Duration
	mu          sync.Mutex
	genaiClient *genai.Client
}

func NewEmbeddingProvider(cfg *config.Config) (EmbeddingProvider, error) {
	timeout := cfg.Timeout()
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case "hashing", "":
		return &HashingEmbedding{Dimension: cfg.EmbeddingDimension}, nil
	case "openai":
		dim := 1536
		if cfg.EmbeddingModel == "text-embedding-3-large" {
			dim = 3072
		}
		return &OpenAIEmbedding{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.EmbeddingModel,
			BaseURL:   "https://api.openai.com/v1",
			Dimension: dim,
			client:    newAPIClient(timeout),
		}, nil
	case "ollama":
		return &OllamaEmbedding{
			Host:      cfg.OllamaHost,
			Model:     cfg.EmbeddingModel,
			Dimension: 768, // nomic-embed-text dimension
			client:    newAPIClient(timeout),
		}, nil
	case "huggingface":
		return &HuggingFaceEmbedding{
			Token:     cfg.HuggingFaceToken,
			Model:     cfg.EmbeddingModel,
			BaseURL:   cfg.HuggingFaceURL,
			Dimension: 384, // all-MiniLM-L6-v2 dimension
			client:    newAPIClient(timeout),
		}, nil
	case "gemini":
		return &GeminiEmbedding{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.EmbeddingModel,
			Dimension: 768,
			timeout:   timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// EmbedAll embeds texts concurrently and returns vectors in input order.
func EmbedAll(ctx context.Context, provider EmbeddingProvider, texts []string, concurrency int) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := provider.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (h *HashingEmbedding) GetDimension() int {
	return h.Dimension
}

func (h *HashingEmbedding) GetModelName() string {
	return "hashing-v1"
}

func (h *HashingEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if h.Dimension <= 0 {
		return nil, fmt.Errorf("invalid hashing dimension %d", h.Dimension)
	}
	vec := make([]float32, h.Dimension)
	for _, tok := range contentTokens(text) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(tok))
		sum := hasher.Sum64()
		idx := int(sum % uint64(h.Dimension))
		if sum>>63 == 1 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	normalize(vec)
	return vec, nil
}

func (o *OpenAIEmbedding) GetDimension() int {
	return o.Dimension
}

func (o *OpenAIEmbedding) GetModelName() string {
	return o.Model
}

func (o *OpenAIEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"input": text,
		"model": o.Model,
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	headers := map[string]string{"Authorization": "Bearer " + o.APIKey}
	if err := o.client.postJSON(ctx, o.BaseURL+"/embeddings", headers, reqBody, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}

	return result.Data[0].Embedding, nil
}

func (ol *OllamaEmbedding) GetDimension() int {
	return ol.Dimension
}

func (ol *OllamaEmbedding) GetModelName() string {
	return ol.Model
}

func (ol *OllamaEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model":  ol.Model,
		"prompt": text,
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := ol.client.postJSON(ctx, fmt.Sprintf("%s/api/embeddings", ol.Host), nil, reqBody, &result); err != nil {
		return nil, err
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}

	return result.Embedding, nil
}

func (hf *HuggingFaceEmbedding) GetDimension() int {
	return hf.Dimension
}

func (hf *HuggingFaceEmbedding) GetModelName() string {
	return hf.Model
}

func (hf *HuggingFaceEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true},
	}

	var raw json.RawMessage
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", hf.BaseURL, hf.Model)
	if err := hf.client.postJSON(ctx, url, bearer(hf.Token), reqBody, &raw); err != nil {
		return nil, err
	}

	// sentence-transformers pipelines return one pooled vector
	var pooled []float32
	if err := json.Unmarshal(raw, &pooled); err == nil && len(pooled) > 0 {
		return pooled, nil
	}

	// plain transformer models return one vector per token
	var perToken [][]float32
	if err := json.Unmarshal(raw, &perToken); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(perToken) == 0 || len(perToken[0]) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}
	return meanPool(perToken), nil
}

func meanPool(rows [][]float32) []float32 {
	out := make([]float32, len(rows[0]))
	for _, row := range rows {
		for i := 0; i < len(out) && i < len(row); i++ {
			out[i] += row[i]
		}
	}
	for i := range out {
		out[i] /= float32(len(rows))
	}
	return out
}

func bearer(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func (g *GeminiEmbedding) GetDimension() int {
	return g.Dimension
}

func (g *GeminiEmbedding) GetModelName() string {
	return g.Model
}

// getClient returns or creates a genai client (thread-safe)
func (g *GeminiEmbedding) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.genaiClient != nil {
		return g.genaiClient, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	g.genaiClient = client
	return client, nil
}

func (g *GeminiEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout(g.timeout))
	defer cancel()

	res, err := client.EmbeddingModel(g.Model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}
	return res.Embedding.Values, nil
}

// Close releases the genai client
func (g *GeminiEmbedding) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.genaiClient == nil {
		return nil
	}
	err := g.genaiClient.Close()
	g.genaiClient = nil
	return err
}
