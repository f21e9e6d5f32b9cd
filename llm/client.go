package llm

import (
	"context"
	"time"
)

// EmbeddingClient turns text into a vector. Empty input is legal.
type EmbeddingClient interface {
	Embed(ctx context.Context, model, input string) (*EmbeddingResponse, error)
}

// Completer sends a prompt as a single user message and returns the first
// choice's text.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (*ChatResponse, error)
}

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

func (c ClientConfig) withDefaults(baseURL string) ClientConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}
