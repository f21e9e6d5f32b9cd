// Package vector provides the similarity retriever and the stores behind it.
package vector

import (
	"context"
	"sort"

	"github.com/hubenschmidt/go-docsrag/core"
)

// Document is an indexed corpus entry.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float64      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Retriever returns at most limit matches with similarity >= threshold,
// most similar first. No matches is an empty slice, not an error. The
// embedding must have the index's dimensionality; this is not checked.
type Retriever interface {
	Match(ctx context.Context, embedding []float64, threshold float64, limit int) ([]core.Match, error)
}

// Indexer stores documents, replacing existing ones by ID.
type Indexer interface {
	Upsert(ctx context.Context, docs []Document) error
}

// Store is a retriever that can also be written to.
type Store interface {
	Retriever
	Indexer

	// Close releases resources.
	Close() error
}

// Clamp enforces the Retriever contract on raw backend results: it drops
// matches under threshold, orders by descending similarity and keeps at
// most limit entries.
func Clamp(matches []core.Match, threshold float64, limit int) []core.Match {
	out := make([]core.Match, 0, len(matches))
	if limit <= 0 {
		return out
	}
	for _, m := range matches {
		if m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
