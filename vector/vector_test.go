package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-docsrag/core"
	"github.com/hubenschmidt/go-docsrag/retry"
)

func TestMain(m *testing.M) {
	retry.NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	os.Exit(m.Run())
}

func TestClamp(t *testing.T) {
	in := []core.Match{
		{ID: "low", Similarity: 0.2},
		{ID: "b", Similarity: 0.47},
		{ID: "a", Similarity: 0.81},
		{ID: "c", Similarity: 0.35},
		{ID: "edge", Similarity: 0.3},
	}

	got := Clamp(in, 0.3, 2)
	assert.Equal(t, []core.Match{{ID: "a", Similarity: 0.81}, {ID: "b", Similarity: 0.47}}, got)

	got = Clamp(in, 0.3, 10)
	require.Len(t, got, 4)
	assert.Equal(t, "edge", got[3].ID)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}
}

func TestClampEmpty(t *testing.T) {
	got := Clamp(nil, 0.3, 2)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = Clamp([]core.Match{{ID: "a", Similarity: 0.9}}, 0.3, 0)
	assert.Empty(t, got)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Zero(t, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}

func TestEmbeddingEncoding(t *testing.T) {
	vec := []float64{0.5, -1.25, 3}
	blob := EncodeEmbedding(vec)
	assert.Len(t, blob, 12)

	got, err := DecodeEmbedding(blob)
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestFormatPgVector(t *testing.T) {
	assert.Equal(t, "[0.1,-2,3.5]", formatPgVector([]float64{0.1, -2, 3.5}))
	assert.Equal(t, "[]", formatPgVector(nil))
}

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, PointID("router/introduction"), PointID("router/introduction"))
	assert.NotEqual(t, PointID("router/introduction"), PointID("router/installation"))
	assert.Len(t, PointID("x"), 36)
}

func TestPointPayloadKeepsStringTitle(t *testing.T) {
	p := pointPayload(Document{ID: "a", Content: "body", Metadata: map[string]any{"title": "A", "n": 1}})
	assert.Equal(t, map[string]any{"slug": "a", "content": "body", "title": "A"}, p)
}

func seed(t *testing.T, s Store) {
	t.Helper()
	docs := []Document{
		{ID: "router/introduction", Content: "intro", Embedding: []float64{1, 0, 0}},
		{ID: "router/installation", Content: "install", Embedding: []float64{0.6, 0.8, 0}},
		{ID: "unrelated", Content: "x", Embedding: []float64{0, 0, 1}},
	}
	require.NoError(t, s.Upsert(context.Background(), docs))
}

func assertRetrieverContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	seed(t, s)

	got, err := s.Match(ctx, []float64{1, 0, 0}, 0.3, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "router/introduction", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, "router/installation", got[1].ID)
	assert.InDelta(t, 0.6, got[1].Similarity, 1e-6)

	got, err = s.Match(ctx, []float64{1, 0, 0}, 0.99, 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Match(ctx, []float64{-1, 0, 0}, 0.3, 2)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	assertRetrieverContract(t, s)
	assert.Equal(t, 3, s.Count())

	require.NoError(t, s.Upsert(context.Background(), []Document{{ID: "unrelated", Embedding: []float64{1, 0, 0}}}))
	assert.Equal(t, 3, s.Count())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	defer s.Close()

	assertRetrieverContract(t, s)
}

func TestSupabaseStoreMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/match_documents", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))

		var req matchDocumentsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 0.3, req.MatchThreshold)
		assert.Equal(t, 2, req.MatchCount)
		assert.Equal(t, []float64{0.1, 0.2}, req.QueryEmbedding)

		// Out of order and over limit; the store must still honor the contract.
		w.Write([]byte(`[
			{"id":"router/installation","similarity":0.47},
			{"id":"router/introduction","similarity":0.81},
			{"id":"extra","similarity":0.31}
		]`))
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL+"/", "anon", 0, 0)
	got, err := s.Match(context.Background(), []float64{0.1, 0.2}, 0.3, 2)
	require.NoError(t, err)
	assert.Equal(t, []core.Match{
		{ID: "router/introduction", Similarity: 0.81},
		{ID: "router/installation", Similarity: 0.47},
	}, got)
}

func TestSupabaseStoreEmptyAndError(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "anon", 0, 0)
	got, err := s.Match(context.Background(), []float64{1}, 0.3, 2)
	require.NoError(t, err)
	assert.Empty(t, got)

	status = http.StatusInternalServerError
	_, err = s.Match(context.Background(), []float64{1}, 0.3, 2)
	assert.ErrorContains(t, err, "500")
}

func TestSupabaseStoreRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id":"a","similarity":0.9}]`))
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "anon", 0, 2)
	got, err := s.Match(context.Background(), []float64{1}, 0.3, 2)
	require.NoError(t, err)
	assert.Equal(t, []core.Match{{ID: "a", Similarity: 0.9}}, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSupabaseStoreClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid key"}`))
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "anon", 0, 3)
	_, err := s.Match(context.Background(), []float64{1}, 0.3, 2)

	var sbErr *SupabaseError
	require.ErrorAs(t, err, &sbErr)
	assert.Equal(t, http.StatusUnauthorized, sbErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSupabaseStoreUpsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/documents", r.URL.Path)
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")

		var rows []documentRow
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "a", rows[0].ID)
		assert.Equal(t, "[1,0.5]", rows[0].Embedding)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "anon", 0, 0)
	err := s.Upsert(context.Background(), []Document{{ID: "a", Content: "c", Embedding: []float64{1, 0.5}}})
	assert.NoError(t, err)
}

func TestMigrationsDefineMatchFunction(t *testing.T) {
	m := migrations(1536)
	require.Len(t, m, 4)
	assert.Contains(t, m[1], "vector(1536)")
	assert.Contains(t, m[3], "match_documents")
	assert.Contains(t, m[3], "query_embedding vector(1536)")
}
