package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/metrics"
	"github.com/markdave123-py/CodeInsight/internal/models"
	"golang.org/x/sync/errgroup"
)

var errNoChunks = errors.New("document produced no indexable chunks")

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
func NewDocumentIngestor(db core.DbClient, index core.VectorIndex, emb core.EmbeddingProvider, cfg *IngestConfig, logger *slog.Logger) *DocumentIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentIngestor{
		db: db, index: index, embedder: emb, cfg: cfg,
		jobs: make(chan string, 64),
		log:  logger.With("component", "ingestor"),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel until ctx ends.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		i.wg.Add(1)
		go func(w int) {
			defer i.wg.Done()
			for {
				select {
				case <-ctx.Done():
					i.log.Debug("worker shutting down", "worker", w)
					return
				case docID := <-i.jobs:
					i.log.Info("processing document", "document_id", docID, "worker", w)

					if err := i.processOne(ctx, docID); err != nil {
						i.log.Error("indexing failed", "document_id", docID, "error", err)
					}
				}
			}
		}(w)
	}
}

// Wait blocks until every worker has returned.
func (i *DocumentIngestor) Wait() { i.wg.Wait() }

// Enqueue schedules a document ID for ingestion.
// If the queue is full, it blocks until space frees up or ctx ends.
func (i *DocumentIngestor) Enqueue(ctx context.Context, docID string) error {
	select {
	case i.jobs <- docID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recover re-queues documents left in processing by a previous run and
// returns how many were found. Their partial vectors are dropped first.
// Queueing happens in the background once the list is loaded.
func (i *DocumentIngestor) Recover(ctx context.Context) (int, error) {
	docs, err := i.db.ListDocumentsByStatus(ctx, models.DocumentStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing documents: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		for n, d := range docs {
			if err := i.index.DeleteDocumentChunks(ctx, d.CollectionName, d.ID); err != nil {
				i.log.Warn("couldn't clear partial vectors", "document_id", d.ID, "error", err)
			}
			if err := i.Enqueue(ctx, d.ID); err != nil {
				i.log.Warn("recovery stopped", "remaining", len(docs)-n, "error", err)
				return
			}
		}
	}()
	return len(docs), nil
}

// processOne streams, chunks, embeds and persists a single document, then
// moves it to ready or failed.
func (i *DocumentIngestor) processOne(ctx context.Context, docID string) error {
	started := time.Now()

	proctx, cancel := ctx, context.CancelFunc(func() {})
	if i.cfg.JobTimeout > 0 {
		proctx, cancel = context.WithTimeout(ctx, i.cfg.JobTimeout)
	}
	defer cancel()

	doc, err := i.db.GetDocumentByID(proctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.Status == models.DocumentStatusReady || doc.Status == models.DocumentStatusFailed {
		i.log.Debug("document already settled", "document_id", docID, "status", doc.Status)
		return nil
	}

	n, err := i.run(proctx, doc)
	if err == nil && n == 0 {
		err = errNoChunks
	}
	if err != nil {
		// Status must land even when the job context is gone.
		stctx, stcancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer stcancel()
		_ = i.index.DeleteDocumentChunks(stctx, doc.CollectionName, docID)
		if uerr := i.db.UpdateDocumentStatus(stctx, docID, models.DocumentStatusFailed, err.Error()); uerr != nil {
			return errors.Join(err, uerr)
		}
		return err
	}

	metrics.IndexDuration(time.Since(started).Seconds())
	i.log.Info("document ready", "document_id", docID, "chunks", n, "took", time.Since(started))
	return i.db.UpdateDocumentStatus(proctx, docID, models.DocumentStatusReady, "")
}

// run wires extract -> chunk -> embed+persist under one errgroup.
func (i *DocumentIngestor) run(ctx context.Context, doc *models.Document) (int, error) {
	g, gctx := errgroup.WithContext(ctx)

	// content -> fragments
	fragCh := i.streamFragments(gctx, g, doc.Content, i.cfg.MaxFragmentLen)

	// fragments -> chunks
	chunkCh := i.streamChunk(gctx, g, fragCh, i.cfg.TargetTokens, i.cfg.OverlapTokens)

	// chunks -> embed + persist
	var written int
	g.Go(func() error {
		n, err := i.embedAndPersist(gctx, doc, chunkCh, i.cfg.BatchSize)
		written = n
		return err
	})

	// Any stage error cancels the rest.
	if err := g.Wait(); err != nil {
		return written, err
	}
	return written, nil
}
