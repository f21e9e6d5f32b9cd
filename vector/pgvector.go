package vector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubenschmidt/go-docsrag/core"
)

const matchDocumentsFunc = `
CREATE OR REPLACE FUNCTION match_documents (
	query_embedding vector(%d),
	match_threshold float,
	match_count int
)
RETURNS TABLE (id text, similarity float)
LANGUAGE sql STABLE
AS $$
	SELECT documents.id, 1 - (documents.embedding <=> query_embedding) AS similarity
	FROM documents
	WHERE 1 - (documents.embedding <=> query_embedding) >= match_threshold
	ORDER BY documents.embedding <=> query_embedding
	LIMIT match_count;
$$`

// PgVectorStore is a PostgreSQL-based vector store using pgvector.
// Similarity search goes through the match_documents SQL function so the
// same schema also serves Supabase's RPC endpoint.
type PgVectorStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewPgVectorStore creates a new pgvector-based store.
// The dimension parameter specifies the embedding dimension (e.g., 1536 for OpenAI).
func NewPgVectorStore(ctx context.Context, dsn string, dimension int) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PgVectorStore{pool: pool, dimension: dimension}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PgVectorStore) migrate(ctx context.Context) error {
	for _, m := range migrations(s.dimension) {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

func migrations(dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			metadata JSONB DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS idx_documents_embedding ON documents USING hnsw (embedding vector_cosine_ops)`,
		fmt.Sprintf(matchDocumentsFunc, dimension),
	}
}

// Upsert stores documents, updating existing ones by ID.
func (s *PgVectorStore) Upsert(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		_, err = s.pool.Exec(ctx, `
			INSERT INTO documents (id, content, embedding, metadata)
			VALUES ($1, $2, $3::vector, $4::jsonb)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata
		`, doc.ID, doc.Content, formatPgVector(doc.Embedding), string(metadata))
		if err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}
	}
	return nil
}

func (s *PgVectorStore) Match(ctx context.Context, embedding []float64, threshold float64, limit int) ([]core.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, similarity FROM match_documents($1::vector, $2, $3)`,
		formatPgVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("match documents: %w", err)
	}
	defer rows.Close()

	var matches []core.Match
	for rows.Next() {
		var m core.Match
		if err := rows.Scan(&m.ID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Clamp(matches, threshold, limit), nil
}

// Close closes the connection pool.
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}
