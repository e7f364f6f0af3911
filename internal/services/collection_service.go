package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/markdave123-py/CodeInsight/internal/core"
)

var ErrEmptyUserID = errors.New("user id is empty")

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// CollectionName derives the per-user collection name. It is pure: the same
// user id always maps to the same name.
func CollectionName(userID string) string {
	return "user_" + nonAlnum.ReplaceAllString(strings.ToLower(userID), "_")
}

// CollectionCreator creates a named collection, reporting an existing one
// with core.ErrCollectionExists.
type CollectionCreator interface {
	CreateCollection(ctx context.Context, name, description, ownerID string) error
}

type CollectionService struct {
	rag CollectionCreator
	log *slog.Logger
}

func NewCollectionService(rag CollectionCreator, logger *slog.Logger) *CollectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionService{rag: rag, log: logger}
}

// GetOrCreate makes sure the user's collection exists and returns its name.
func (s *CollectionService) GetOrCreate(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	name := CollectionName(userID)

	err := s.rag.CreateCollection(ctx, name, fmt.Sprintf("Knowledge base for user %s", userID), userID)
	switch {
	case err == nil:
		s.log.Info("collection created", "collection", name, "user_id", userID)
		return name, nil
	case errors.Is(err, core.ErrCollectionExists):
		return name, nil
	default:
		return "", fmt.Errorf("provision collection %s: %w", name, err)
	}
}
