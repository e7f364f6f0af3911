package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/markdave123-py/CodeInsight/internal/metrics"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

// embedAndPersist consumes chunks, embeds them in batches, and writes them to the index.
// It returns the number of chunks written.
//
// doc:        document being indexed.
// in:         chunk stream from streamChunk.
// batchSize:  number of chunks to embed/write per batch (limits memory).
func (i *DocumentIngestor) embedAndPersist(
	ctx context.Context,
	doc *models.Document,
	in <-chan chunk,
	batchSize int,
) (int, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	batch := make([]chunk, 0, batchSize)
	written := 0

	flush := func(items []chunk) error {
		if len(items) == 0 {
			return nil
		}

		texts := make([]string, len(items))
		for idx := range items {
			texts[idx] = items[idx].Text
		}

		metrics.EmbedBatch()
		vecs, err := i.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			metrics.EmbedError()
			return fmt.Errorf("embed: %w", err)
		}
		if len(vecs) != len(items) {
			return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(items))
		}

		rows := make([]models.DocumentChunk, len(items))
		for k := range items {
			rows[k] = models.DocumentChunk{
				DocumentID:     doc.ID,
				CollectionName: doc.CollectionName,
				Text:           items[k].Text,
				Embedding:      vecs[k],
				Position:       items[k].Pos,
				TokenCount:     items[k].TokenCnt,
			}
		}
		if err := i.index.InsertDocumentChunks(ctx, doc.CollectionName, rows); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		written += len(rows)
		metrics.ChunksIndexed(len(rows))
		return nil
	}

	for c := range in {
		batch = append(batch, c)
		if len(batch) == batchSize {
			if err := flush(batch); err != nil {
				return written, err
			}
			batch = batch[:0]
		}
	}
	if err := flush(batch); err != nil {
		return written, err
	}
	return written, nil
}
