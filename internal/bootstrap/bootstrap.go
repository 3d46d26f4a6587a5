package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ayoubray/tdrassist/internal/config"
	"github.com/ayoubray/tdrassist/internal/core/ports"
	"github.com/ayoubray/tdrassist/internal/core/usecase"
	"github.com/ayoubray/tdrassist/internal/infrastructure/chunking"
	"github.com/ayoubray/tdrassist/internal/infrastructure/extractor"
	"github.com/ayoubray/tdrassist/internal/infrastructure/llm/ollama"
	"github.com/ayoubray/tdrassist/internal/infrastructure/queue/nats"
	"github.com/ayoubray/tdrassist/internal/infrastructure/repository/postgres"
	"github.com/ayoubray/tdrassist/internal/infrastructure/resilience"
	"github.com/ayoubray/tdrassist/internal/infrastructure/storage/localfs"
	"github.com/ayoubray/tdrassist/internal/infrastructure/structuring"
	"github.com/ayoubray/tdrassist/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository
	DB    *sql.DB

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	IndexUC   ports.DocumentIndexer
	SearchUC  ports.SearchService
	AnswerUC  ports.AnswerService
	ReaderUC  ports.DocumentReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient, cfg.EmbedConcurrency, cfg.EmbedRatePerSec)
	generator := ollama.NewGenerator(ollamaClient, cfg.GenTemperature, cfg.GenNumPredict)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	rules := structuring.MustLoadRules()
	classifier := structuring.NewClassifier(rules)
	structurer := structuring.NewStructurer(rules)

	chunker := chunking.NewChunker(cfg.ChunkTargetChars, cfg.ChunkMaxChars, cfg.ChunkOverlapChars)
	textExtractor := extractor.NewDispatcher(storage)

	ingestUC := usecase.NewIngestDocumentUseCase(
		repo, storage, queue,
		cfg.RawBucket, cfg.ProcessedBucket,
		extractor.SupportedExtension,
	)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, textExtractor, classifier, structurer, queue)
	indexUC := usecase.NewIndexDocumentUseCase(
		repo, storage, chunker, embedder, vectorDB, logger,
		cfg.QdrantCollection, cfg.EmbedBatchSize, cfg.UpsertBatchSize,
	)
	searchUC := usecase.NewSearchUseCase(
		embedder, vectorDB, repo, storage, logger,
		cfg.HybridWeightVector, cfg.HybridWeightLexical,
		cfg.HybridPoolMult, cfg.PerDocSnippets, cfg.MaxPerDocChunks, cfg.FallbackMaxDocs,
	)
	answerUC := usecase.NewAnswerUseCase(
		searchUC, vectorDB, generator, logger,
		cfg.RAGTopDocs, cfg.RAGSnippetsPerDoc, cfg.RAGMaxContextChars, cfg.RAGMaxChunkChars, cfg.RAGExpandRadius,
	)
	readerUC := usecase.NewDocumentReadUseCase(repo, vectorDB)

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,
		Repo:   repo,
		DB:     db,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		IndexUC:   indexUC,
		SearchUC:  searchUC,
		AnswerUC:  answerUC,
		ReaderUC:  readerUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
