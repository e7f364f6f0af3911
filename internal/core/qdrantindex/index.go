package qdrantindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

var ErrQdrantUnreachable = errors.New("qdrant unreachable")

var _ core.VectorIndex = (*Index)(nil)

// Index stores chunk vectors in Qdrant, one Qdrant collection per user collection.
type Index struct {
	client *qdrant.Client
}

// NewIndex connects over gRPC and waits for Qdrant to report healthy.
func NewIndex(ctx context.Context, host string, port int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &Index{client: client}
	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	return idx, nil
}

func (x *Index) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error { return x.Health(ctx) }, backoff.WithContext(b, ctx))
}

func (x *Index) Health(ctx context.Context) error {
	result, err := x.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

func (x *Index) Close() error {
	return x.client.Close()
}

// EnsureCollection creates the Qdrant collection with cosine vectors of size dim.
// Idempotent.
func (x *Index) EnsureCollection(ctx context.Context, collection string, dim int) error {
	exists, err := x.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Deletes filter on document_id.
	_, err = x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      "document_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create document_id index: %w", err)
	}
	return nil
}

func (x *Index) InsertDocumentChunks(ctx context.Context, collection string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		id := ch.ID
		if id == "" {
			id = uuid.NewString()
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(ch.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": ch.DocumentID,
				"position":    ch.Position,
				"text":        ch.Text,
				"token_count": ch.TokenCount,
			}),
		}
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

// SearchChunks returns the limit closest chunks. FileName is left for the caller to resolve.
func (x *Index) SearchChunks(ctx context.Context, collection string, queryVec []float32, limit int) ([]models.ScoredChunk, error) {
	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	out := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		p := r.Payload
		out = append(out, models.ScoredChunk{
			DocumentChunk: models.DocumentChunk{
				ID:             r.Id.GetUuid(),
				DocumentID:     p["document_id"].GetStringValue(),
				CollectionName: collection,
				Text:           p["text"].GetStringValue(),
				Position:       int(p["position"].GetIntegerValue()),
				TokenCount:     int(p["token_count"].GetIntegerValue()),
			},
			Score: float64(r.Score),
		})
	}
	return out, nil
}

func (x *Index) DeleteDocumentChunks(ctx context.Context, collection string, documentID string) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	return nil
}
