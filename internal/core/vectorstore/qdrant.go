package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

var _ core.VectorStore = (*QdrantStore)(nil)

// chunkNamespace derives stable point UUIDs from chunk ids.
var chunkNamespace = uuid.MustParse("6f1c7a52-3c1e-4b8e-9f5e-2a7d0c4b9e11")

type QdrantStore struct {
	client    *qdrant.Client
	dimension uint64
	log       *slog.Logger
}

func NewQdrantStore(ctx context.Context, host string, port int, apiKey string, dimension int) (*QdrantStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	if _, err := client.ListCollections(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant not reachable: %w", err)
	}
	return &QdrantStore{
		client:    client,
		dimension: uint64(dimension),
		log:       logger.NewModuleLogger("vectorstore", "qdrant"),
	}, nil
}

func (s *QdrantStore) CreateCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	s.log.Info("created collection", "name", name, "dimension", s.dimension)
	return nil
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return core.ErrCollectionNotFound
	}
	return s.client.DeleteCollection(ctx, name)
}

func (s *QdrantStore) ListCollections(ctx context.Context) ([]models.CollectionInfo, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	exact := true
	out := make([]models.CollectionInfo, 0, len(names))
	for _, name := range names {
		n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: &exact})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		out = append(out, models.CollectionInfo{Name: name, Count: int(n)})
	}
	return out, nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.CreateCollection(ctx, collection); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		payload := ch.Metadata()
		payload["chunk_id"] = ch.ID
		payload["text"] = ch.Text
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewSHA1(chunkNamespace, []byte(ch.ID)).String()),
			Vectors: qdrant.NewVectors(ch.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, collection string, vec []float32, k int) ([]models.RetrievedChunk, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, core.ErrCollectionNotFound
	}

	limit := uint64(k)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query qdrant: %w", err)
	}

	out := make([]models.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		payload := hit.GetPayload()
		meta := make(map[string]any, len(payload))
		for key, v := range payload {
			switch kind := v.GetKind().(type) {
			case *qdrant.Value_StringValue:
				meta[key] = kind.StringValue
			case *qdrant.Value_IntegerValue:
				meta[key] = kind.IntegerValue
			case *qdrant.Value_DoubleValue:
				meta[key] = kind.DoubleValue
			case *qdrant.Value_BoolValue:
				meta[key] = kind.BoolValue
			}
		}
		text, _ := meta["text"].(string)
		id, _ := meta["chunk_id"].(string)
		delete(meta, "text")
		delete(meta, "chunk_id")
		out = append(out, models.RetrievedChunk{ID: id, Text: text, Metadata: meta, Score: hit.GetScore()})
	}
	return out, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
