package ingestion_engine

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/core"
	objectclient "github.com/markdave123-py/CodeInsight/internal/core/object-client"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

type fakeDB struct {
	core.DbClient // unused methods panic

	mu      sync.Mutex
	docs    map[string]*models.Document
	status  chan string
	listErr error
}

func newFakeDB(docs ...*models.Document) *fakeDB {
	db := &fakeDB{docs: map[string]*models.Document{}, status: make(chan string, 8)}
	for _, d := range docs {
		db.docs[d.ID] = d
	}
	return db
}

func (f *fakeDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, core.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDB) UpdateDocumentStatus(_ context.Context, id, status, reason string) error {
	f.mu.Lock()
	d, ok := f.docs[id]
	if ok {
		d.Status, d.Error = status, reason
	}
	f.mu.Unlock()
	if !ok {
		return core.ErrDocumentNotFound
	}
	f.status <- status
	return nil
}

func (f *fakeDB) ListDocumentsByStatus(_ context.Context, status string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Document
	for _, d := range f.docs {
		if d.Status == status {
			cp := *d
			cp.Content = ""
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	chunks  []models.DocumentChunk
	deleted []string
}

func (f *fakeIndex) EnsureCollection(context.Context, string, int) error { return nil }

func (f *fakeIndex) InsertDocumentChunks(_ context.Context, _ string, rows []models.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, rows...)
	return nil
}

func (f *fakeIndex) SearchChunks(context.Context, string, []float32, int) ([]models.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteDocumentChunks(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type fakeObjects struct {
	files map[string][]byte
}

func (f *fakeObjects) UploadFile(context.Context, string, io.Reader, string, bool) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeObjects) DeleteFile(context.Context, string) error { return nil }

func (f *fakeObjects) GetFile(_ context.Context, key string) ([]byte, error) {
	b, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

func (f *fakeObjects) KeyFromURL(u string) (string, bool) {
	bucket, key := objectclient.ParseS3URL(u)
	if bucket != "bucket" || key == "" {
		return "", false
	}
	return key, true
}

func waitStatus(ch <-chan string) string {
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		return "timeout"
	}
}
