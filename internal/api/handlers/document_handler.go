package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/models"
	"github.com/markdave123-py/CodeInsight/internal/services"
)

const maxUploadMemory = 32 << 20

// Provisioner resolves the user's collection, creating it on first use.
type Provisioner interface {
	GetOrCreate(ctx context.Context, userID string) (string, error)
}

type Ingester interface {
	IngestFiles(ctx context.Context, files []services.UploadFile, userID, collection string, onProgress services.ProgressFunc) services.IngestReport
}

type DocumentManager interface {
	List(ctx context.Context, collection string) []models.Document
	Delete(ctx context.Context, collection, id string) ([]models.Document, error)
}

type DocumentHandler struct {
	collections Provisioner
	ingest      Ingester
	docs        DocumentManager
	log         *slog.Logger
}

func NewDocumentHandler(collections Provisioner, ingest Ingester, docs DocumentManager, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{collections: collections, ingest: ingest, docs: docs, log: logger}
}

// UploadDocuments ingests every multipart "files" part and streams progress
// as server-sent events, ending with a "done" event carrying the report.
func (h *DocumentHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files selected")
		return
	}

	files, closeAll, err := openParts(headers)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer closeAll()

	collection, err := h.collections.GetOrCreate(r.Context(), uid)
	if err != nil {
		h.log.Error("provision collection failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "could not prepare your knowledge base")
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// The run outlives a closed browser tab; later writes just fail.
	ctx := context.WithoutCancel(r.Context())
	report := h.ingest.IngestFiles(ctx, files, uid, collection, func(p services.UploadProgress) {
		_ = sse.send("progress", p)
	})
	_ = sse.send("done", report)
}

func openParts(headers []*multipart.FileHeader) ([]services.UploadFile, func(), error) {
	var (
		files   []services.UploadFile
		closers []multipart.File
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, f)
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		files = append(files, services.UploadFile{Name: fh.Filename, ContentType: ct, Body: f})
	}
	return files, closeAll, nil
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.docs.List(r.Context(), services.CollectionName(uid)))
}

// DeleteDocument removes one document and responds with the re-fetched list.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	docs, err := h.docs.Delete(r.Context(), services.CollectionName(uid), id)
	if errors.Is(err, core.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		h.log.Error("delete document failed", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
