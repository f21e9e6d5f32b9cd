package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hubenschmidt/go-docsrag/core"
)

// UnifiedClient routes embedding and completion calls to a provider based on
// the model name prefix.
type UnifiedClient struct {
	openai      *OpenAIClient
	anthropic   *AnthropicClient
	ollama      *OpenAIClient
	ollamaEmbed *OllamaEmbedClient
}

type UnifiedConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	OllamaURL     string
	Timeout       time.Duration
	MaxRetries    int
}

func NewUnifiedClient(cfg UnifiedConfig) *UnifiedClient {
	u := &UnifiedClient{}
	base := ClientConfig{Timeout: cfg.Timeout, MaxRetries: cfg.MaxRetries}

	if cfg.OpenAIKey != "" {
		c := base
		c.APIKey = cfg.OpenAIKey
		c.BaseURL = cfg.OpenAIBaseURL
		u.openai = NewOpenAIClientWithConfig(c)
	}

	if cfg.AnthropicKey != "" {
		c := base
		c.APIKey = cfg.AnthropicKey
		u.anthropic = NewAnthropicClientWithConfig(c)
	}

	if cfg.OllamaURL != "" {
		c := base
		c.BaseURL = ollamaHost(cfg.OllamaURL) + "/v1"
		u.ollama = NewOpenAIClientWithConfig(c)
		c.BaseURL = cfg.OllamaURL
		u.ollamaEmbed = NewOllamaEmbedClient(c)
	}

	return u
}

func (u *UnifiedClient) Complete(ctx context.Context, model, prompt string) (*ChatResponse, error) {
	client, resolvedModel := u.resolveCompleter(model)
	if client == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNoProvider, model)
	}
	return client.Complete(ctx, resolvedModel, prompt)
}

func (u *UnifiedClient) Embed(ctx context.Context, model, input string) (*EmbeddingResponse, error) {
	client, resolvedModel := u.resolveEmbeddingClient(model)
	if client == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNoProvider, model)
	}
	return client.Embed(ctx, resolvedModel, input)
}

func (u *UnifiedClient) resolveCompleter(model string) (Completer, string) {
	switch {
	case strings.HasPrefix(model, "claude-") && u.anthropic != nil:
		return u.anthropic, model
	case strings.HasPrefix(model, "ollama/") && u.ollama != nil:
		return u.ollama, strings.TrimPrefix(model, "ollama/")
	case isOpenAIModel(model) && u.openai != nil:
		return u.openai, model
	}
	return u.defaultCompleter(), model
}

func isOpenAIModel(model string) bool {
	for _, p := range []string{"gpt-", "o1", "o3", "o4"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func (u *UnifiedClient) defaultCompleter() Completer {
	switch {
	case u.openai != nil:
		return u.openai
	case u.anthropic != nil:
		return u.anthropic
	case u.ollama != nil:
		return u.ollama
	}
	return nil
}

func (u *UnifiedClient) resolveEmbeddingClient(model string) (EmbeddingClient, string) {
	if strings.HasPrefix(model, "ollama/") {
		if u.ollamaEmbed == nil {
			return nil, model
		}
		return u.ollamaEmbed, strings.TrimPrefix(model, "ollama/")
	}

	if u.openai != nil {
		return u.openai, model
	}

	if u.ollamaEmbed != nil {
		return u.ollamaEmbed, model
	}

	return nil, model
}

func (u *UnifiedClient) HasOpenAI() bool {
	return u.openai != nil
}

func (u *UnifiedClient) HasAnthropic() bool {
	return u.anthropic != nil
}

func (u *UnifiedClient) HasOllama() bool {
	return u.ollama != nil
}
