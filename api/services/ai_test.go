package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/local/docqa/api/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body struct {
			System   string              `json:"system"`
			Messages []map[string]string `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be brief", body.System)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "summarize this", body.Messages[0]["content"])

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"a summary"}]}`))
	}))
	defer srv.Close()

	a := &AnthropicProvider{APIKey: "key", Model: "claude", BaseURL: srv.URL, client: fastAPIClient()}
	out, err := a.GenerateText(context.Background(), "summarize this", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "a summary", out)
}

func TestOpenAIGenerateTextNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	o := &OpenAIProvider{APIKey: "key", Model: "gpt", BaseURL: srv.URL, client: fastAPIClient()}
	_, err := o.GenerateText(context.Background(), "p", "s")
	assert.Error(t, err)
}

func TestNewAIProvider(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "anthropic", NewAIProvider(cfg).GetProviderName())

	cfg.ModelProvider = "openai"
	assert.Equal(t, "openai", NewAIProvider(cfg).GetProviderName())

	cfg.ModelProvider = "gemini"
	cfg.RequestTimeout = 9
	p := NewAIProvider(cfg)
	assert.Equal(t, "gemini", p.GetProviderName())
	require.IsType(t, &GeminiProvider{}, p)
	assert.Equal(t, 9*time.Second, p.(*GeminiProvider).timeout)
}

func TestCallTimeoutDefault(t *testing.T) {
	assert.Equal(t, defaultHTTPTimeout, callTimeout(0))
	assert.Equal(t, time.Second, callTimeout(time.Second))
}

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("first "), genai.Text("second")}}},
		},
	}
	out, err := geminiText(resp)
	require.NoError(t, err)
	assert.Equal(t, "first second", out)

	_, err = geminiText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}
