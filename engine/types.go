package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hubenschmidt/go-docsrag/core"
)

// FetchPolicy decides what a single failed document fetch does to a run.
type FetchPolicy string

const (
	// FetchStrict fails the whole run on the first fetch error.
	FetchStrict FetchPolicy = "strict"
	// FetchDegraded drops failed documents from both the prompt and the
	// reported docs and continues.
	FetchDegraded FetchPolicy = "degraded"
)

func (p FetchPolicy) Valid() bool {
	return p == FetchStrict || p == FetchDegraded
}

type Config struct {
	Models      core.ModelConfig
	Threshold   float64
	Limit       int
	FetchPolicy FetchPolicy
	// Separator goes between document bodies in the prompt context.
	Separator string
	// Timeout bounds a whole run. Zero disables it.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Models:      core.DefaultModelConfig(),
		Threshold:   0.3,
		Limit:       2,
		FetchPolicy: FetchStrict,
		Timeout:     60 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", core.ErrInvalidConfig, c.Limit)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [0,1], got %g", core.ErrInvalidConfig, c.Threshold)
	}
	if !c.FetchPolicy.Valid() {
		return fmt.Errorf("%w: unknown fetch policy %q", core.ErrInvalidConfig, c.FetchPolicy)
	}
	return nil
}

// DocumentFetcher loads and parses one document by id.
type DocumentFetcher interface {
	FetchAndParse(ctx context.Context, id string) (core.ParsedDocument, error)
}

// fetched is one rank slot of the concurrent fetch.
type fetched struct {
	match core.Match
	doc   core.ParsedDocument
	err   error
}
