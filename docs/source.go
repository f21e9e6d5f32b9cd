// Package docs fetches documentation pages and splits them into front-matter
// metadata and body.
package docs

import (
	"context"
	"fmt"

	"github.com/hubenschmidt/go-docsrag/core"
)

// Source returns the raw text of the document with the given id.
// A missing document is reported as core.ErrNotFound.
type Source interface {
	Fetch(ctx context.Context, id string) (string, error)
}

// Fetcher combines a Source with front-matter parsing.
type Fetcher struct {
	source Source
}

func NewFetcher(source Source) *Fetcher {
	return &Fetcher{source: source}
}

// FetchAndParse fetches id and parses its front matter.
func (f *Fetcher) FetchAndParse(ctx context.Context, id string) (core.ParsedDocument, error) {
	raw, err := f.source.Fetch(ctx, id)
	if err != nil {
		return core.ParsedDocument{}, err
	}
	doc, err := ParseFrontMatter(raw)
	if err != nil {
		return core.ParsedDocument{}, fmt.Errorf("parse %s: %w", id, err)
	}
	return doc, nil
}
