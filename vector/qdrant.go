package vector

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/hubenschmidt/go-docsrag/core"
)

const (
	slugPayloadKey    = "slug"
	contentPayloadKey = "content"
	titlePayloadKey   = "title"
)

// QdrantConfig configures the Qdrant gRPC connection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantStore keeps one point per document. Qdrant only accepts UUID or
// integer point ids, so the slug lives in the payload and the point id is
// derived from it.
type QdrantStore struct {
	api        *qdrant.Client
	collection string
}

func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &QdrantStore{api: client, collection: cfg.Collection}
	if err := store.ensureCollection(ctx, uint64(cfg.Dimension)); err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dimension uint64) error {
	collections, err := s.api.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if slices.Contains(collections, s.collection) {
		return nil
	}

	err = s.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

// PointID maps a document slug to its stable Qdrant point id.
func PointID(slug string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(slug)).String()
}

func (s *QdrantStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(doc.ID)),
			Vectors: qdrant.NewVectors(toFloat32(doc.Embedding)...),
			Payload: qdrant.NewValueMap(pointPayload(doc)),
		})
	}

	wait := true
	_, err := s.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// pointPayload keeps only string fields; NewValueMap rejects types such as
// time.Time that YAML front matter may decode into.
func pointPayload(doc Document) map[string]any {
	payload := map[string]any{
		slugPayloadKey:    doc.ID,
		contentPayloadKey: doc.Content,
	}
	if title, ok := doc.Metadata[titlePayloadKey].(string); ok {
		payload[titlePayloadKey] = title
	}
	return payload
}

func (s *QdrantStore) Match(ctx context.Context, embedding []float64, threshold float64, limit int) ([]core.Match, error) {
	if limit <= 0 {
		return []core.Match{}, nil
	}

	n := uint64(limit)
	scoreThreshold := float32(threshold)
	points, err := s.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(toFloat32(embedding)...),
		Limit:          &n,
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	matches := make([]core.Match, 0, len(points))
	for _, p := range points {
		slug := p.GetPayload()[slugPayloadKey].GetStringValue()
		if slug == "" {
			continue
		}
		matches = append(matches, core.Match{ID: slug, Similarity: float64(p.GetScore())})
	}
	return Clamp(matches, threshold, limit), nil
}

func (s *QdrantStore) Close() error {
	return s.api.Close()
}
