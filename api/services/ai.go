package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/local/docqa/api/config"
	"google.golang.org/api/option"
)

// AIProvider is the interface for AI model providers
type AIProvider interface {
	GenerateText(ctx context.Context, prompt string, systemPrompt string) (string, error)
	GetProviderName() string
}

// AnthropicProvider implements Claude AI
type AnthropicProvider struct {
	APIKey  string
	Model   string
	BaseURL string
	client  *apiClient
}

// OpenAIProvider implements OpenAI
type OpenAIProvider struct {
	APIKey  string
	Model   string
	BaseURL string
	client  *apiClient
}

// GeminiProvider implements Google Gemini through the genai SDK
type GeminiProvider struct {
	APIKey string
	Model  string

	timeout     time.Duration
	mu          sync.Mutex
	genaiClient *genai.Client
}

func NewAIProvider(cfg *config.Config) AIProvider {
	timeout := cfg.Timeout()
	switch strings.ToLower(cfg.ModelProvider) {
	case "openai":
		return &OpenAIProvider{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: "https://api.openai.com/v1",
			client:  newAPIClient(timeout),
		}
	case "gemini":
		return &GeminiProvider{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			timeout: timeout,
		}
	default:
		return &AnthropicProvider{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			BaseURL: "https://api.anthropic.com/v1",
			client:  newAPIClient(timeout),
		}
	}
}

func (a *AnthropicProvider) GetProviderName() string {
	return "anthropic"
}

func (a *AnthropicProvider) GenerateText(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":      a.Model,
		"max_tokens": 1024,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	headers := map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := a.client.postJSON(ctx, a.BaseURL+"/messages", headers, reqBody, &result); err != nil {
		return "", err
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return result.Content[0].Text, nil
}

func (o *OpenAIProvider) GetProviderName() string {
	return "openai"
}

func (o *OpenAIProvider) GenerateText(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"max_tokens": 1024,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": fmt.Sprintf("Bearer %s", o.APIKey)}
	if err := o.client.postJSON(ctx, o.BaseURL+"/chat/completions", headers, reqBody, &result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return result.Choices[0].Message.Content, nil
}

func (g *GeminiProvider) GetProviderName() string {
	return "gemini"
}

func (g *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
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

func (g *GeminiProvider) GenerateText(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout(g.timeout))
	defer cancel()

	model := client.GenerativeModel(g.Model)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return geminiText(resp)
}

// Close releases the genai client
func (g *GeminiProvider) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.genaiClient == nil {
		return nil
	}
	err := g.genaiClient.Close()
	g.genaiClient = nil
	return err
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return sb.String(), nil
}
