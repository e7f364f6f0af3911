package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/CodeInsight/internal/models"
)

// DocumentStore lists and deletes documents of a collection.
type DocumentStore interface {
	ListDocuments(ctx context.Context, collection string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
}

type DocumentService struct {
	rag DocumentStore
	log *slog.Logger
}

func NewDocumentService(rag DocumentStore, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{rag: rag, log: logger}
}

// List returns the collection's documents. Failures are logged and yield an empty list.
func (s *DocumentService) List(ctx context.Context, collection string) []models.Document {
	docs, err := s.rag.ListDocuments(ctx, collection)
	if err != nil {
		s.log.Error("list documents failed", "collection", collection, "error", err)
		return []models.Document{}
	}
	if docs == nil {
		return []models.Document{}
	}
	return docs
}

// Delete removes a document and returns the re-fetched list.
func (s *DocumentService) Delete(ctx context.Context, collection, id string) ([]models.Document, error) {
	if err := s.rag.DeleteDocument(ctx, collection, id); err != nil {
		return nil, fmt.Errorf("delete document %s: %w", id, err)
	}
	s.log.Info("document deleted", "collection", collection, "document_id", id)
	return s.List(ctx, collection), nil
}
