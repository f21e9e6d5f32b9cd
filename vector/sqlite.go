package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hubenschmidt/go-docsrag/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding BLOB,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore persists documents in a single SQLite file and scores them in
// process with cosine similarity.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO documents (id, content, metadata, embedding, updated_at)
			 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
			doc.ID, doc.Content, string(metadata), EncodeEmbedding(doc.Embedding))
		if err != nil {
			return fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Match(ctx context.Context, embedding []float64, threshold float64, limit int) ([]core.Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM documents WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var matches []core.Match
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		matches = append(matches, core.Match{ID: id, Similarity: CosineSimilarity(embedding, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Clamp(matches, threshold, limit), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
