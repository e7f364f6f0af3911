package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/core/ingestion_engine"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

var errNotReady = errors.New("document still processing")

// Options tunes the RAG facade. Zero values fall back to defaults.
type Options struct {
	EmbedDim     int
	PollInterval time.Duration
	MaxPoll      time.Duration
	ReadyTimeout time.Duration // 0 waits until ctx ends
}

// Client is the collection/document/search surface the application talks to.
// Indexing happens asynchronously in the ingestor; WaitForReady observes it.
type Client struct {
	db       core.DbClient
	index    core.VectorIndex
	embedder core.EmbeddingProvider
	ingestor ingestion_engine.Ingestor
	opts     Options
	log      *slog.Logger
}

func NewClient(db core.DbClient, index core.VectorIndex, emb core.EmbeddingProvider, ing ingestion_engine.Ingestor, opts Options, logger *slog.Logger) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.MaxPoll <= 0 {
		opts.MaxPoll = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{db: db, index: index, embedder: emb, ingestor: ing, opts: opts, log: logger.With("component", "rag")}
}

// CreateCollection registers a collection and prepares its vector space.
// An existing collection yields core.ErrCollectionExists.
func (c *Client) CreateCollection(ctx context.Context, name, description, ownerID string) error {
	err := c.db.CreateCollection(ctx, &models.Collection{Name: name, Description: description, OwnerID: ownerID})
	if err != nil && !errors.Is(err, core.ErrCollectionExists) {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	if ierr := c.index.EnsureCollection(ctx, name, c.opts.EmbedDim); ierr != nil {
		return fmt.Errorf("prepare index for %s: %w", name, ierr)
	}
	return err
}

// Upload stores the content as a processing document and queues it for indexing.
func (c *Client) Upload(ctx context.Context, collection, fileName, content string, meta models.DocumentMetadata) (string, error) {
	doc := &models.Document{
		ID:             uuid.NewString(),
		CollectionName: collection,
		UserID:         meta.UserID,
		FileName:       fileName,
		ContentType:    "text/plain",
		Content:        content,
		Metadata:       meta,
		Status:         models.DocumentStatusProcessing,
	}
	if err := c.db.CreateDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	if err := c.ingestor.Enqueue(ctx, doc.ID); err != nil {
		_ = c.db.UpdateDocumentStatus(context.WithoutCancel(ctx), doc.ID, models.DocumentStatusFailed, err.Error())
		return "", fmt.Errorf("enqueue document: %w", err)
	}
	c.log.Debug("document queued", "document_id", doc.ID, "collection", collection, "file", fileName)
	return doc.ID, nil
}

// WaitForReady polls the document until it is ready. A failed document
// returns core.ErrDocumentFailed. Without a ReadyTimeout it waits as long as ctx allows.
func (c *Client) WaitForReady(ctx context.Context, id string) (*models.Document, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.PollInterval
	b.MaxInterval = c.opts.MaxPoll
	b.MaxElapsedTime = c.opts.ReadyTimeout

	var doc *models.Document
	operation := func() error {
		d, err := c.db.GetDocumentByID(ctx, id)
		if errors.Is(err, core.ErrDocumentNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		switch d.Status {
		case models.DocumentStatusReady:
			doc = d
			return nil
		case models.DocumentStatusFailed:
			return backoff.Permanent(fmt.Errorf("%w: %s", core.ErrDocumentFailed, d.Error))
		default:
			return errNotReady
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", id, err)
	}
	return doc, nil
}

func (c *Client) ListDocuments(ctx context.Context, collection string) ([]models.Document, error) {
	return c.db.ListDocumentsByCollection(ctx, collection)
}

// DeleteDocument removes the document and its vectors. The document must belong to collection.
func (c *Client) DeleteDocument(ctx context.Context, collection, id string) error {
	doc, err := c.db.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.CollectionName != collection {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	if err := c.index.DeleteDocumentChunks(ctx, collection, id); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := c.db.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Search embeds query and returns the topK closest chunks of collection.
func (c *Client) Search(ctx context.Context, collection, query string, topK int) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}
	vecs, err := c.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	// Over-fetch so dropping unready hits still leaves topK results.
	hits, err := c.index.SearchChunks(ctx, collection, vecs[0], topK*2)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	// Only chunks of ready documents are queryable. Indexes that cannot filter
	// on status may also return points of a document deleted mid-ingestion.
	docs := map[string]*models.Document{}
	out := make([]models.ScoredChunk, 0, topK)
	for _, h := range hits {
		d, seen := docs[h.DocumentID]
		if !seen {
			d, err = c.db.GetDocumentByID(ctx, h.DocumentID)
			if err != nil && !errors.Is(err, core.ErrDocumentNotFound) {
				return nil, fmt.Errorf("lookup %s: %w", h.DocumentID, err)
			}
			docs[h.DocumentID] = d
		}
		if d == nil || d.Status != models.DocumentStatusReady {
			continue
		}
		if h.FileName == "" {
			h.FileName = d.FileName
		}
		out = append(out, h)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}
