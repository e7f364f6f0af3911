package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	keys    []string
	failOn  string
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string][]byte{}} }

func (f *fakeStorage) UploadFile(_ context.Context, key string, data io.Reader, _ string, upsert bool) (string, error) {
	if f.failOn != "" && strings.HasSuffix(key, f.failOn) {
		return "", errors.New("storage unavailable")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; ok && !upsert {
		return "", core.ErrObjectExists
	}
	f.objects[key] = b
	f.keys = append(f.keys, key)
	return "mem://" + key, nil
}

func (f *fakeStorage) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) GetFile(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (f *fakeStorage) KeyFromURL(u string) (string, bool) {
	return strings.CutPrefix(u, "mem://")
}

// fakeExtractor reads back what fakeStorage holds; .pdf files come back as segments.
type fakeExtractor struct {
	storage *fakeStorage
	failOn  string
}

func (f *fakeExtractor) ExtractFromURL(ctx context.Context, u string) (core.Extraction, error) {
	if f.failOn != "" && strings.HasSuffix(u, f.failOn) {
		return core.Extraction{}, errors.New("extraction service down")
	}
	key, _ := f.storage.KeyFromURL(u)
	b, err := f.storage.GetFile(ctx, key)
	if err != nil {
		return core.Extraction{}, err
	}
	if strings.HasSuffix(u, ".pdf") {
		return core.Extraction{Segments: strings.Split(string(b), "|")}, nil
	}
	return core.Extraction{Text: string(b)}, nil
}

// fakeRAG is an in-memory collection/document store that settles uploads immediately.
type fakeRAG struct {
	mu          sync.Mutex
	collections map[string]int
	createErr   error
	docs        map[string]models.Document
	uploaded    []string
	seq         int
	failWaitOn  string
	listErr     error
	deleteErr   error
}

func newFakeRAG() *fakeRAG {
	return &fakeRAG{collections: map[string]int{}, docs: map[string]models.Document{}}
}

func (f *fakeRAG) CreateCollection(_ context.Context, name, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.collections[name]++
	if f.collections[name] > 1 {
		return fmt.Errorf("%w: %s", core.ErrCollectionExists, name)
	}
	return nil
}

func (f *fakeRAG) Upload(_ context.Context, collection, fileName, content string, meta models.DocumentMetadata) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("doc-%d", f.seq)
	f.docs[id] = models.Document{
		ID: id, CollectionName: collection, FileName: fileName, Content: content,
		Metadata: meta, Status: models.DocumentStatusProcessing,
		CreatedAt: time.Unix(int64(f.seq), 0),
	}
	f.uploaded = append(f.uploaded, fileName)
	return id, nil
}

func (f *fakeRAG) WaitForReady(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[id]
	if f.failWaitOn != "" && d.FileName == f.failWaitOn {
		d.Status = models.DocumentStatusFailed
		f.docs[id] = d
		return nil, core.ErrDocumentFailed
	}
	d.Status = models.DocumentStatusReady
	f.docs[id] = d
	return &d, nil
}

func (f *fakeRAG) ListDocuments(_ context.Context, collection string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Document
	for _, d := range f.docs {
		if d.CollectionName == collection {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRAG) DeleteDocument(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	d, ok := f.docs[id]
	if !ok || d.CollectionName != collection {
		return core.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}
