package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	objectclient "github.com/markdave123-py/CodeInsight/internal/core/object-client"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

func newTestIngestor(db *fakeDB, idx *fakeIndex, emb *fakeEmbedder) *DocumentIngestor {
	cfg := DefaultIngestConfig(2)
	cfg.TargetTokens = 10
	cfg.OverlapTokens = 3
	cfg.BatchSize = 2
	cfg.MaxFragmentLen = 40
	return NewDocumentIngestor(db, idx, emb, cfg, nil)
}

func collect(t *testing.T, in <-chan chunk, g *errgroup.Group) []chunk {
	t.Helper()
	var out []chunk
	for c := range in {
		out = append(out, c)
	}
	require.NoError(t, g.Wait())
	return out
}

func TestStreamChunkPositionsAndOverlap(t *testing.T) {
	ing := newTestIngestor(newFakeDB(), &fakeIndex{}, &fakeEmbedder{})
	g, ctx := errgroup.WithContext(context.Background())

	var lines []string
	for n := 0; n < 12; n++ {
		lines = append(lines, fmt.Sprintf("line %02d of code", n)) // 4 tokens each
	}
	frags := ing.streamFragments(ctx, g, strings.Join(lines, "\n"), 40)
	chunks := collect(t, ing.streamChunk(ctx, g, frags, 10, 3), g)

	require.NotEmpty(t, chunks)
	for k, c := range chunks {
		assert.Equal(t, k, c.Pos)
		assert.NotEmpty(t, c.Text)
	}
	assert.Contains(t, chunks[0].Text, "line 00")
	assert.Contains(t, chunks[len(chunks)-1].Text, "line 11")

	// The last line of a chunk seeds the next one.
	first := strings.Split(chunks[0].Text, "\n")
	assert.True(t, strings.HasPrefix(chunks[1].Text, first[len(first)-1]))
}

func TestStreamChunkNoTrailingDuplicate(t *testing.T) {
	ing := newTestIngestor(newFakeDB(), &fakeIndex{}, &fakeEmbedder{})
	g, ctx := errgroup.WithContext(context.Background())

	// Exactly one full chunk: the overlap tail must not be re-emitted alone.
	frags := ing.streamFragments(ctx, g, "aaaaaaaaaaaaaaaa\nbbbbbbbbbbbbbbbbbbbbbbbb", 100)
	chunks := collect(t, ing.streamChunk(ctx, g, frags, 10, 3), g)
	assert.Len(t, chunks, 1)
}

func TestStreamFragmentsSplitsLongLines(t *testing.T) {
	ing := newTestIngestor(newFakeDB(), &fakeIndex{}, &fakeEmbedder{})
	g, ctx := errgroup.WithContext(context.Background())

	var got []string
	for f := range ing.streamFragments(ctx, g, strings.Repeat("x", 95)+"\n\n   \nend", 40) {
		got = append(got, f)
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, []string{strings.Repeat("x", 40), strings.Repeat("x", 40), strings.Repeat("x", 15), "end"}, got)
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("abc"))
	assert.Equal(t, 2, approxTokens("abcde"))
}

func TestWorkerIndexesDocument(t *testing.T) {
	doc := &models.Document{
		ID: "d1", CollectionName: "user_u1", Status: models.DocumentStatusProcessing,
		Content: "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n",
	}
	db, idx, emb := newFakeDB(doc), &fakeIndex{}, &fakeEmbedder{}
	ing := newTestIngestor(db, idx, emb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx, 2)
	require.NoError(t, ing.Enqueue(ctx, "d1"))

	assert.Equal(t, models.DocumentStatusReady, waitStatus(db.status))
	require.NotEmpty(t, idx.chunks)
	for _, c := range idx.chunks {
		assert.Equal(t, "d1", c.DocumentID)
		assert.Equal(t, "user_u1", c.CollectionName)
		assert.Len(t, c.Embedding, 2)
	}
}

func TestWorkerMarksFailedOnEmbedError(t *testing.T) {
	doc := &models.Document{ID: "d1", CollectionName: "c", Content: "some text"}
	db, idx := newFakeDB(doc), &fakeIndex{}
	ing := newTestIngestor(db, idx, &fakeEmbedder{err: errors.New("quota")})

	err := ing.processOne(context.Background(), "d1")
	require.Error(t, err)
	assert.Equal(t, models.DocumentStatusFailed, waitStatus(db.status))
	assert.Contains(t, db.docs["d1"].Error, "quota")
	assert.Equal(t, []string{"d1"}, idx.deleted)
}

func TestWorkerFailsOnBlankContent(t *testing.T) {
	doc := &models.Document{ID: "d1", CollectionName: "c", Content: " \n\t\n"}
	db := newFakeDB(doc)
	ing := newTestIngestor(db, &fakeIndex{}, &fakeEmbedder{})

	err := ing.processOne(context.Background(), "d1")
	assert.ErrorIs(t, err, errNoChunks)
	assert.Equal(t, models.DocumentStatusFailed, waitStatus(db.status))
}

func TestRecoverRequeuesUnfinishedDocuments(t *testing.T) {
	db := newFakeDB(
		&models.Document{ID: "a", CollectionName: "c", Status: models.DocumentStatusProcessing, Content: "alpha text"},
		&models.Document{ID: "b", CollectionName: "c", Status: models.DocumentStatusProcessing, Content: "beta text"},
		&models.Document{ID: "done", CollectionName: "c", Status: models.DocumentStatusReady, Content: "gamma"},
	)
	idx := &fakeIndex{}
	ing := newTestIngestor(db, idx, &fakeEmbedder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx, 1)

	n, err := ing.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, models.DocumentStatusReady, waitStatus(db.status))
	assert.Equal(t, models.DocumentStatusReady, waitStatus(db.status))

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Equal(t, models.DocumentStatusReady, db.docs["a"].Status)
	assert.Equal(t, models.DocumentStatusReady, db.docs["b"].Status)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, idx.deleted)
	for _, c := range idx.chunks {
		assert.NotEqual(t, "done", c.DocumentID)
	}
}

func TestRecoverNothingPending(t *testing.T) {
	ing := newTestIngestor(newFakeDB(), &fakeIndex{}, &fakeEmbedder{})
	n, err := ing.Recover(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	db := newFakeDB()
	db.listErr = errors.New("db down")
	_, err = newTestIngestor(db, &fakeIndex{}, &fakeEmbedder{}).Recover(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestWorkerSkipsSettledDocument(t *testing.T) {
	doc := &models.Document{ID: "d1", CollectionName: "c", Status: models.DocumentStatusReady, Content: "already done"}
	db, idx, emb := newFakeDB(doc), &fakeIndex{}, &fakeEmbedder{}
	ing := newTestIngestor(db, idx, emb)

	require.NoError(t, ing.processOne(context.Background(), "d1"))
	assert.Zero(t, emb.calls)
	assert.Empty(t, idx.chunks)
	assert.Empty(t, db.status)
}

func TestEnqueueRespectsContext(t *testing.T) {
	ing := newTestIngestor(newFakeDB(), &fakeIndex{}, &fakeEmbedder{})
	for n := 0; n < cap(ing.jobs); n++ {
		require.NoError(t, ing.Enqueue(context.Background(), "x"))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ing.Enqueue(ctx, "overflow"), context.Canceled)
}

func TestExtractFromObjectStore(t *testing.T) {
	obj := &fakeObjects{files: map[string][]byte{"code-insights/u/1_main.go": []byte("package main\n")}}
	ex := NewDocconvExtractor(obj, false)

	got, err := ex.ExtractFromURL(context.Background(), "https://bucket.s3.local.amazonaws.com/code-insights/u/1_main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", got.Text)
	assert.Empty(t, got.Segments)
}

func TestExtractStoredNameWithReservedCharacters(t *testing.T) {
	obj := &fakeObjects{files: map[string][]byte{
		"code-insights/u/1_notes #2?.md": []byte("# Notes\n"),
		"code-insights/u/2_blob #1.bin":  {0xff, 0xfe, 0x00, 0x81},
	}}
	ex := NewDocconvExtractor(obj, false)

	u := objectclient.PublicURL("bucket", "local", "code-insights/u/1_notes #2?.md")
	got, err := ex.ExtractFromURL(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n", got.Text)

	u = objectclient.PublicURL("bucket", "local", "code-insights/u/2_blob #1.bin")
	_, err = ex.ExtractFromURL(context.Background(), u)
	assert.ErrorContains(t, err, "extract 2_blob #1.bin: unsupported binary content")
}

func TestExtractFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes.md":
			_, _ = w.Write([]byte("# Notes\n"))
		case "/blob.bin":
			_, _ = w.Write([]byte{0xff, 0xfe, 0x00, 0x81})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	ex := NewDocconvExtractor(nil, false)

	got, err := ex.ExtractFromURL(context.Background(), srv.URL+"/notes.md")
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n", got.Normalize())

	_, err = ex.ExtractFromURL(context.Background(), srv.URL+"/blob.bin")
	assert.ErrorContains(t, err, "unsupported binary content")

	_, err = ex.ExtractFromURL(context.Background(), srv.URL+"/missing.txt")
	assert.ErrorContains(t, err, "status 404")
}
