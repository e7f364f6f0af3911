package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/models"
)

// DbClient defines all persistence operations your services will need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)
	GetUserByID(ctx context.Context, id string) (user *models.User, err error)

	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)

	// CreateCollection returns ErrCollectionExists when the name is taken.
	CreateCollection(ctx context.Context, c *models.Collection) error
	GetCollection(ctx context.Context, name string) (*models.Collection, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByCollection(ctx context.Context, collection string) ([]models.Document, error)
	// ListDocumentsByStatus returns matching documents oldest first, without content.
	ListDocumentsByStatus(ctx context.Context, status string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string, reason string) error
	DeleteDocument(ctx context.Context, id string) error

	Close() error
}

// VectorIndex stores chunk embeddings per collection and answers similarity queries.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, collection string, dim int) error
	InsertDocumentChunks(ctx context.Context, collection string, chunks []models.DocumentChunk) error
	SearchChunks(ctx context.Context, collection string, queryVec []float32, limit int) ([]models.ScoredChunk, error)
	DeleteDocumentChunks(ctx context.Context, collection string, documentID string) error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	// UploadFile stores data under key and returns its public URL. With
	// upsert=false an existing object yields ErrObjectExists.
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string, upsert bool) (url string, err error)
	DeleteFile(ctx context.Context, key string) error
	GetFile(ctx context.Context, key string) ([]byte, error)

	// KeyFromURL maps a public URL produced by UploadFile back to its key.
	KeyFromURL(url string) (key string, ok bool)
}
