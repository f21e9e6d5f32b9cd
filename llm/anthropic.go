package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/hubenschmidt/go-docsrag/core"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

type AnthropicClient struct {
	apiKey     string
	baseURL    string
	version    string
	maxTokens  int
	maxRetries int
	client     *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	cfg := DefaultClientConfig()
	cfg.APIKey = apiKey
	return NewAnthropicClientWithConfig(cfg)
}

func NewAnthropicClientWithConfig(cfg ClientConfig) *AnthropicClient {
	cfg = cfg.withDefaults(anthropicBaseURL)
	return &AnthropicClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		version:    anthropicVersion,
		maxTokens:  4096,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete sends prompt as one user message to /messages and joins the
// returned text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, model, prompt string) (*ChatResponse, error) {
	reqBody := map[string]any{
		"model":      model,
		"max_tokens": c.maxTokens,
		"messages":   []core.Message{core.NewUserMessage(prompt)},
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": c.version,
	}

	var result anthropicResponse
	if err := postJSON(ctx, c.client, "Anthropic", c.baseURL+"/messages", headers, c.maxRetries, reqBody, &result); err != nil {
		return nil, err
	}

	var sb strings.Builder
	texts := 0
	for _, block := range result.Content {
		if block.Type != "text" {
			continue
		}
		sb.WriteString(block.Text)
		texts++
	}
	if texts == 0 {
		return nil, core.ErrEmptyCompletion
	}

	return &ChatResponse{
		Content:      sb.String(),
		FinishReason: result.StopReason,
		Usage: Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		},
	}, nil
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
