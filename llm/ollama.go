package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hubenschmidt/go-docsrag/core"
)

// OllamaEmbedClient handles Ollama's native embedding API.
type OllamaEmbedClient struct {
	baseURL    string
	maxRetries int
	client     *http.Client
}

// NewOllamaEmbedClient accepts either the bare host or the /v1 base URL.
func NewOllamaEmbedClient(cfg ClientConfig) *OllamaEmbedClient {
	cfg = cfg.withDefaults("http://localhost:11434")
	return &OllamaEmbedClient{
		baseURL:    ollamaHost(cfg.BaseURL),
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func ollamaHost(baseURL string) string {
	host := strings.TrimSuffix(baseURL, "/")
	return strings.TrimSuffix(host, "/v1")
}

// Embed calls /api/embed for a single input.
func (c *OllamaEmbedClient) Embed(ctx context.Context, model, input string) (*EmbeddingResponse, error) {
	reqBody := map[string]any{
		"model": model,
		"input": input,
	}

	var result ollamaEmbedResponse
	if err := postJSON(ctx, c.client, "Ollama", c.baseURL+"/api/embed", nil, c.maxRetries, reqBody, &result); err != nil {
		return nil, err
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("model %s: %w", model, core.ErrEmptyEmbedding)
	}

	return &EmbeddingResponse{
		Embedding:  result.Embeddings[0],
		TokenCount: result.PromptEvalCount,
	}, nil
}

type ollamaEmbedResponse struct {
	Embeddings      [][]float64 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}
