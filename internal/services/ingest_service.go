package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/core"
	objectclient "github.com/markdave123-py/CodeInsight/internal/core/object-client"
	"github.com/markdave123-py/CodeInsight/internal/metrics"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

const finalProgressMessage = "All files indexed successfully!"

// Ingestion stages named in IngestionError.
const (
	StageUpload  = "upload"
	StageExtract = "extract"
	StageIndex   = "index"
	StageWait    = "wait"
)

// UploadFile is one user-selected file. Body is read once.
type UploadFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// DocumentIndexer is the part of the RAG facade ingestion needs.
type DocumentIndexer interface {
	Upload(ctx context.Context, collection, fileName, content string, meta models.DocumentMetadata) (string, error)
	WaitForReady(ctx context.Context, id string) (*models.Document, error)
}

// Platform bundles the managed services an ingestion run talks to.
type Platform struct {
	Storage   core.ObjectClient
	Extractor core.Extractor
	RAG       DocumentIndexer
}

// IngestionError records which stage a file failed in.
type IngestionError struct {
	FileName string
	Stage    string
	Cause    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.FileName, e.Stage, e.Cause)
}

func (e *IngestionError) Unwrap() error { return e.Cause }

// FileOutcome is the final state of one file in a run.
type FileOutcome struct {
	FileName   string `json:"file_name"`
	State      string `json:"state"`
	DocumentID string `json:"document_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type IngestReport struct {
	Files       []FileOutcome `json:"files"`
	DocumentIDs []string      `json:"document_ids"`
}

// Count returns how many files ended in state.
func (r IngestReport) Count(state FileState) int {
	n := 0
	for _, f := range r.Files {
		if f.State == state.String() {
			n++
		}
	}
	return n
}

type IngestService struct {
	platform    Platform
	storageRoot string
	now         func() time.Time
	log         *slog.Logger
}

func NewIngestService(p Platform, storageRoot string, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	if storageRoot == "" {
		storageRoot = "code-insights"
	}
	return &IngestService{platform: p, storageRoot: storageRoot, now: time.Now, log: logger.With("component", "ingest")}
}

// IngestFiles processes files one at a time: upload, extract, index, wait
// for ready. A failing file is recorded and the run moves on; the run always
// ends with a single 100% report.
func (s *IngestService) IngestFiles(ctx context.Context, files []UploadFile, userID, collection string, onProgress ProgressFunc) IngestReport {
	tracker := NewProgressTracker(onProgress)
	report := IngestReport{Files: make([]FileOutcome, 0, len(files)), DocumentIDs: []string{}}
	total := len(files)

	for i, f := range files {
		outcome := FileOutcome{FileName: f.Name}

		docID, state, err := s.ingestOne(ctx, f, i, total, userID, collection, tracker)
		outcome.State = state.String()
		outcome.DocumentID = docID

		switch state {
		case StateReady:
			report.DocumentIDs = append(report.DocumentIDs, docID)
			metrics.FileIngested(metrics.OutcomeReady)
		case StateSkipped:
			metrics.FileIngested(metrics.OutcomeSkipped)
		case StateFailed:
			outcome.Error = err.Error()
			metrics.FileIngested(metrics.OutcomeFailed)
			s.log.Error("file ingestion failed", "file", f.Name, "error", err)
			tracker.Report(fmt.Sprintf("Error processing %s", f.Name), f.Name, StateFailed, overallPercent(i, total, StateUploading))
		}
		report.Files = append(report.Files, outcome)
	}

	tracker.Finish(finalProgressMessage)
	return report
}

func (s *IngestService) ingestOne(ctx context.Context, f UploadFile, i, total int, userID, collection string, tracker *ProgressTracker) (string, FileState, error) {
	fail := func(stage string, err error) (string, FileState, error) {
		return "", StateFailed, &IngestionError{FileName: f.Name, Stage: stage, Cause: err}
	}

	tracker.Report(fmt.Sprintf("Uploading %s...", f.Name), f.Name, StateUploading, overallPercent(i, total, StateUploading))

	key := objectclient.ObjectKey(s.storageRoot, userID, s.now(), f.Name)
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	publicURL, err := s.platform.Storage.UploadFile(ctx, key, f.Body, contentType, true)
	if err != nil {
		return fail(StageUpload, err)
	}

	tracker.Report(fmt.Sprintf("Extracting content from %s...", f.Name), f.Name, StateExtracting, overallPercent(i, total, StateExtracting))

	extraction, err := s.platform.Extractor.ExtractFromURL(ctx, publicURL)
	if err != nil {
		return fail(StageExtract, err)
	}
	content := extraction.Normalize()
	if strings.TrimSpace(content) == "" {
		s.log.Warn("no content extracted, skipping", "file", f.Name)
		return "", StateSkipped, nil
	}

	tracker.Report(fmt.Sprintf("Indexing %s to RAG...", f.Name), f.Name, StateIndexing, overallPercent(i, total, StateIndexing))

	docID, err := s.platform.RAG.Upload(ctx, collection, f.Name, content, models.DocumentMetadata{
		StorageURL:   publicURL,
		UserID:       userID,
		OriginalName: f.Name,
	})
	if err != nil {
		return fail(StageIndex, err)
	}

	if _, err := s.platform.RAG.WaitForReady(ctx, docID); err != nil {
		return fail(StageWait, err)
	}
	return docID, StateReady, nil
}
