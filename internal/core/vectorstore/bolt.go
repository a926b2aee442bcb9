package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

var _ core.VectorStore = (*BoltStore)(nil)

// BoltStore keeps one bucket per collection in a local bbolt file and answers
// queries by brute-force cosine similarity.
type BoltStore struct {
	db *bbolt.DB
}

type boltRecord struct {
	Text     string         `json:"text"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) CreateCollection(_ context.Context, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

func (s *BoltStore) DeleteCollection(_ context.Context, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(name))
		if err == bbolt.ErrBucketNotFound {
			return core.ErrCollectionNotFound
		}
		return err
	})
}

func (s *BoltStore) ListCollections(_ context.Context) ([]models.CollectionInfo, error) {
	var out []models.CollectionInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			out = append(out, models.CollectionInfo{Name: string(name), Count: b.Stats().KeyN})
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Upsert(_ context.Context, collection string, chunks []models.DocumentChunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		for _, ch := range chunks {
			data, err := json.Marshal(boltRecord{Text: ch.Text, Vector: ch.Embedding, Metadata: ch.Metadata()})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(ch.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Query(ctx context.Context, collection string, vec []float32, k int) ([]models.RetrievedChunk, error) {
	if k <= 0 {
		k = 3
	}
	var hits []models.RetrievedChunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return core.ErrCollectionNotFound
		}
		return b.ForEach(func(key, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec boltRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			hits = append(hits, models.RetrievedChunk{
				ID:       string(key),
				Text:     rec.Text,
				Metadata: rec.Metadata,
				Score:    cosine(vec, rec.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
