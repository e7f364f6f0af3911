package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/agent"
	"github.com/markdave123-py/CodeInsight/internal/config"
	"github.com/markdave123-py/CodeInsight/internal/core"
	db "github.com/markdave123-py/CodeInsight/internal/core/database"
	"github.com/markdave123-py/CodeInsight/internal/core/ingestion_engine"
	"github.com/markdave123-py/CodeInsight/internal/core/llm"
	objectclient "github.com/markdave123-py/CodeInsight/internal/core/object-client"
	"github.com/markdave123-py/CodeInsight/internal/core/qdrantindex"
	"github.com/markdave123-py/CodeInsight/internal/core/rag"
	"github.com/markdave123-py/CodeInsight/internal/services"
)

// App holds the platform clients and the services built on them.
type App struct {
	Config *config.Config

	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Index        core.VectorIndex
	Embedder     core.EmbeddingProvider
	DocProcessor *ingestion_engine.DocumentIngestor
	RAG          *rag.Client

	Users       *services.UserService
	Collections *services.CollectionService
	Ingest      *services.IngestService
	Documents   *services.DocumentService

	log     *slog.Logger
	closers []func() error
}

// NewApp connects to every managed service and starts the indexing workers,
// which run until ctx ends.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, log: logger}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient.Close)
	logger.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(initCtx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ObjectClient = objClient
	logger.Info("object client initialized and ready", "bucket", cfg.BucketName)

	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		idx, err := qdrantindex.NewIndex(initCtx, cfg.QdrantHost, cfg.QdrantPort)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Index = idx
		a.closers = append(a.closers, idx.Close)
	default:
		a.Index = dbClient
	}
	logger.Info("vector index ready", "backend", cfg.VectorBackend)

	emb, err := llm.NewEmbedder(initCtx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	a.Embedder = emb
	if c, ok := emb.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	ingCfg := ingestion_engine.DefaultIngestConfig(cfg.EmbedDim)
	a.DocProcessor = ingestion_engine.NewDocumentIngestor(dbClient, a.Index, emb, ingCfg, logger)
	a.DocProcessor.Start(ctx, cfg.IngestWorkers)
	if n, err := a.DocProcessor.Recover(ctx); err != nil {
		logger.Warn("couldn't recover unfinished documents", "error", err)
	} else if n > 0 {
		logger.Info("re-queued unfinished documents", "count", n)
	}

	a.RAG = rag.NewClient(dbClient, a.Index, emb, a.DocProcessor, rag.Options{
		EmbedDim:     cfg.EmbedDim,
		ReadyTimeout: cfg.ReadyTimeout,
	}, logger)

	useReadability := false
	extractor := ingestion_engine.NewDocconvExtractor(objClient, useReadability)

	a.Users = services.NewUserService(dbClient, cfg.JWTSecret, cfg.ProjectID, cfg.TokenTTL)
	a.Collections = services.NewCollectionService(a.RAG, logger)
	a.Ingest = services.NewIngestService(services.Platform{
		Storage:   objClient,
		Extractor: extractor,
		RAG:       a.RAG,
	}, cfg.StorageRoot, logger)
	a.Documents = services.NewDocumentService(a.RAG, logger)

	return a, nil
}

// NewAgents builds the chat model and the per-user session registry.
func (a *App) NewAgents(ctx context.Context) (*agent.Registry, error) {
	model, err := llm.NewGeminiLLM(ctx, a.Config.AIAPIKey, a.Config.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the chat model, %w", err)
	}
	a.closers = append(a.closers, model.Close)

	ag := agent.New(model, agent.Config{MaxToolSteps: a.Config.MaxToolSteps}, a.log)
	return agent.NewRegistry(ag, a.RAG, a.log), nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
