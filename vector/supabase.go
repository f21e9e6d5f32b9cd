package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hubenschmidt/go-docsrag/core"
	"github.com/hubenschmidt/go-docsrag/retry"
)

// SupabaseStore talks to a Supabase project's PostgREST API. Matching calls
// the match_documents RPC created by PgVectorStore's migrations.
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	maxRetries int
	client     *http.Client
}

// NewSupabaseStore retries 429 and 5xx responses and transport errors up
// to maxRetries times.
func NewSupabaseStore(url, apiKey string, timeout time.Duration, maxRetries int) *SupabaseStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SupabaseStore{
		baseURL:    strings.TrimSuffix(url, "/"),
		apiKey:     apiKey,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

// SupabaseError is a non-2xx response from PostgREST.
type SupabaseError struct {
	StatusCode int
	Body       string
}

func (e *SupabaseError) Error() string {
	return fmt.Sprintf("supabase error %d: %s", e.StatusCode, e.Body)
}

type matchDocumentsRequest struct {
	QueryEmbedding []float64 `json:"query_embedding"`
	MatchThreshold float64   `json:"match_threshold"`
	MatchCount     int       `json:"match_count"`
}

type matchDocumentsRow struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

func (s *SupabaseStore) Match(ctx context.Context, embedding []float64, threshold float64, limit int) ([]core.Match, error) {
	req := matchDocumentsRequest{
		QueryEmbedding: embedding,
		MatchThreshold: threshold,
		MatchCount:     limit,
	}

	var rows []matchDocumentsRow
	if err := s.post(ctx, "/rest/v1/rpc/match_documents", req, nil, &rows); err != nil {
		return nil, fmt.Errorf("match_documents: %w", err)
	}

	matches := make([]core.Match, len(rows))
	for i, r := range rows {
		matches[i] = core.Match{ID: r.ID, Similarity: r.Similarity}
	}
	return Clamp(matches, threshold, limit), nil
}

type documentRow struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding string         `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// Upsert writes through PostgREST with merge-duplicates resolution.
func (s *SupabaseStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]documentRow, len(docs))
	for i, doc := range docs {
		rows[i] = documentRow{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: formatPgVector(doc.Embedding),
			Metadata:  doc.Metadata,
		}
	}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	if err := s.post(ctx, "/rest/v1/documents", rows, headers, nil); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}

func (s *SupabaseStore) post(ctx context.Context, path string, body any, headers map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(ctx, s.maxRetries, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(fmt.Errorf("send request: %w", err))
			}
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			sbErr := &SupabaseError{StatusCode: resp.StatusCode, Body: string(data)}
			if retry.TemporaryStatus(resp.StatusCode) {
				return sbErr
			}
			return retry.Permanent(sbErr)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}

func (s *SupabaseStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
