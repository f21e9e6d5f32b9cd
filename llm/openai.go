package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hubenschmidt/go-docsrag/core"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the OpenAI API or any OpenAI-compatible server.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	maxRetries int
	client     *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	cfg := DefaultClientConfig()
	cfg.APIKey = apiKey
	return NewOpenAIClientWithConfig(cfg)
}

func NewOpenAIClientWithConfig(cfg ClientConfig) *OpenAIClient {
	cfg = cfg.withDefaults(openAIBaseURL)
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *OpenAIClient) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

// Complete sends prompt as one user message to /chat/completions.
func (c *OpenAIClient) Complete(ctx context.Context, model, prompt string) (*ChatResponse, error) {
	reqBody := map[string]any{
		"model":    model,
		"messages": []core.Message{core.NewUserMessage(prompt)},
	}

	var result openAIResponse
	if err := postJSON(ctx, c.client, "OpenAI", c.baseURL+"/chat/completions", c.headers(), c.maxRetries, reqBody, &result); err != nil {
		return nil, err
	}

	if len(result.Choices) == 0 {
		return nil, core.ErrEmptyCompletion
	}

	choice := result.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        result.Usage,
	}, nil
}

// Embed calls /embeddings with float encoding.
func (c *OpenAIClient) Embed(ctx context.Context, model, input string) (*EmbeddingResponse, error) {
	reqBody := map[string]any{
		"model":           model,
		"input":           input,
		"encoding_format": "float",
	}

	var result openAIEmbeddingResponse
	if err := postJSON(ctx, c.client, "OpenAI", c.baseURL+"/embeddings", c.headers(), c.maxRetries, reqBody, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("model %s: %w", model, core.ErrEmptyEmbedding)
	}

	return &EmbeddingResponse{
		Embedding:  result.Data[0].Embedding,
		TokenCount: result.Usage.PromptTokens,
	}, nil
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   Usage          `json:"usage"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}
