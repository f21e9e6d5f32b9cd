// Package indexer loads documentation pages into a vector store.
package indexer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hubenschmidt/go-docsrag/engine"
	"github.com/hubenschmidt/go-docsrag/llm"
	"github.com/hubenschmidt/go-docsrag/logger"
	"github.com/hubenschmidt/go-docsrag/vector"
)

// Indexer fetches, parses and embeds pages, then upserts them keyed by slug.
type Indexer struct {
	fetcher  engine.DocumentFetcher
	embedder llm.EmbeddingClient
	store    vector.Indexer
	model    string
	logger   *logger.Logger
}

func New(fetcher engine.DocumentFetcher, embedder llm.EmbeddingClient, store vector.Indexer, model string, log *logger.Logger) *Indexer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Indexer{
		fetcher:  fetcher,
		embedder: embedder,
		store:    store,
		model:    model,
		logger:   log,
	}
}

// Index processes slugs in order and stops at the first failure. It
// returns how many documents were stored.
func (ix *Indexer) Index(ctx context.Context, slugs []string) (int, error) {
	for i, slug := range slugs {
		if err := ix.indexOne(ctx, slug); err != nil {
			ix.logger.Error("indexing failed", err, map[string]any{"doc_id": slug, "indexed": i})
			return i, fmt.Errorf("index %s: %w", slug, err)
		}
		ix.logger.Info("document indexed", nil, map[string]any{"doc_id": slug})
	}
	return len(slugs), nil
}

func (ix *Indexer) indexOne(ctx context.Context, slug string) error {
	doc, err := ix.fetcher.FetchAndParse(ctx, slug)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	resp, err := ix.embedder.Embed(ctx, ix.model, doc.Body)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	err = ix.store.Upsert(ctx, []vector.Document{{
		ID:        slug,
		Content:   doc.Body,
		Embedding: resp.Embedding,
		Metadata:  doc.Metadata,
	}})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// ReadSlugs reads one slug per line, skipping blank lines and # comments.
func ReadSlugs(r io.Reader) ([]string, error) {
	var slugs []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		slugs = append(slugs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read slugs: %w", err)
	}
	return slugs, nil
}
