package ingestion_engine

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/core"
)

// IngestConfig tunes the streaming pipeline.
//
// TargetTokens:   approximate tokens per chunk (e.g., 500).
// OverlapTokens:  token overlap between consecutive chunks (e.g., 50).
// BatchSize:      how many chunks to embed/write in one batch (e.g., 32).
// MaxFragmentLen: soft upper bound for individual fragments fed to the chunker.
// EmbedDim:       embedding dimension, passed to the index when a collection is created.
// JobTimeout:     upper bound for indexing one document; 0 means none.
type IngestConfig struct {
	TargetTokens   int
	OverlapTokens  int
	BatchSize      int
	MaxFragmentLen int
	EmbedDim       int
	JobTimeout     time.Duration
}

// DefaultIngestConfig returns the knobs the service runs with.
func DefaultIngestConfig(embedDim int) *IngestConfig {
	return &IngestConfig{
		TargetTokens:   500,
		OverlapTokens:  50,
		BatchSize:      32,
		MaxFragmentLen: 2000,
		EmbedDim:       embedDim,
		JobTimeout:     5 * time.Minute,
	}
}

// chunk is the internal representation passed through the pipeline.
//
// Pos:      stable, zero-based position of the chunk inside the document.
// Text:     chunk content (built from one or more fragments).
// TokenCnt: approximate token count (used for batching and overlap math).
type chunk struct {
	Pos      int
	Text     string
	TokenCnt int
}

// DocumentIngestor runs the background indexing pipeline:
//
// db:        document rows and status.
// index:     vector index receiving the chunk embeddings.
// embedder:  embedding provider (Gemini/OpenAI).
// cfg:       runtime tuning knobs for the pipeline.
// jobs:      in-memory queue of document IDs to process.
type DocumentIngestor struct {
	db       core.DbClient
	index    core.VectorIndex
	embedder core.EmbeddingProvider
	cfg      *IngestConfig
	jobs     chan string
	log      *slog.Logger
	wg       sync.WaitGroup
}

// DocconvExtractor implements core.Extractor using sajari/docconv.
type DocconvExtractor struct {
	obj            core.ObjectClient
	http           *http.Client
	useReadability bool
	maxBytes       int64
}
