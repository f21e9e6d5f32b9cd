package vector

import (
	"context"
	"sync"

	"github.com/hubenschmidt/go-docsrag/core"
)

// MemoryStore is an in-memory vector store for development and testing.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	return nil
}

// Match scores every stored document with brute-force cosine similarity.
func (s *MemoryStore) Match(ctx context.Context, embedding []float64, threshold float64, limit int) ([]core.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]core.Match, 0, len(s.docs))
	for _, doc := range s.docs {
		if len(doc.Embedding) == 0 {
			continue
		}
		matches = append(matches, core.Match{ID: doc.ID, Similarity: CosineSimilarity(embedding, doc.Embedding)})
	}
	return Clamp(matches, threshold, limit), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
