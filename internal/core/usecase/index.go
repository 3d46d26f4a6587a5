package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
)

// IndexDocumentUseCase rebuilds the vector index for one document from its
// structured JSON: purge, chunk, embed, upsert. Re-running it is idempotent
// because chunk ids and point ids are derived, not generated.
type IndexDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	chunker  ports.ChunkBuilder
	embedder ports.Embedder
	vectorDB ports.VectorStore
	logger   *slog.Logger

	collection      string
	embedBatchSize  int
	upsertBatchSize int
}

func NewIndexDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	chunker ports.ChunkBuilder,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	logger *slog.Logger,
	collection string,
	embedBatchSize, upsertBatchSize int,
) *IndexDocumentUseCase {
	if embedBatchSize <= 0 {
		embedBatchSize = 8
	}
	if upsertBatchSize <= 0 {
		upsertBatchSize = 32
	}
	return &IndexDocumentUseCase{
		repo:            repo,
		storage:         storage,
		chunker:         chunker,
		embedder:        embedder,
		vectorDB:        vectorDB,
		logger:          logger,
		collection:      collection,
		embedBatchSize:  embedBatchSize,
		upsertBatchSize: upsertBatchSize,
	}
}

func (uc *IndexDocumentUseCase) IndexByID(ctx context.Context, documentID string) (*domain.IndexStats, error) {
	stats, err := uc.indexPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}
	return stats, nil
}

func (uc *IndexDocumentUseCase) indexPipeline(ctx context.Context, documentID string) (*domain.IndexStats, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	structured, structuredKey, err := loadStructuredDocument(ctx, uc.storage, doc)
	if err != nil {
		return nil, err
	}
	if structured.DocID == "" {
		structured.DocID = doc.ID
	}

	// Stale points from a previous run must not survive a re-index. Purge
	// failures are tolerated: the collection may not exist yet.
	if err := uc.vectorDB.DeleteByDocID(ctx, structured.DocID); err != nil {
		uc.logger.Warn("purge before re-index failed", "doc_id", structured.DocID, "error", err)
	}

	chunks, err := uc.chunker.Build(structured)
	if err != nil {
		return nil, fmt.Errorf("build chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "index.chunk", errors.New("no indexable chunks"))
	}

	vectors, err := uc.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}
	vectorSize := len(vectors[0])
	for i, v := range vectors {
		if len(v) != vectorSize {
			return nil, domain.WrapError(domain.ErrInconsistentData, "index.embed",
				fmt.Errorf("embedding %d has dim %d, expected %d", i, len(v), vectorSize))
		}
	}

	if err := uc.vectorDB.EnsureCollection(ctx, vectorSize); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]domain.VectorPoint, 0, len(chunks))
	for i, chunk := range chunks {
		id, err := domain.PointID(chunk.DocID, chunk.Section, chunk.ChunkIndex)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "index.pointid", err)
		}
		points = append(points, domain.VectorPoint{ID: id, Vector: vectors[i], Chunk: chunk})
	}
	for start := 0; start < len(points); start += uc.upsertBatchSize {
		end := start + uc.upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := uc.vectorDB.UpsertChunks(ctx, points[start:end]); err != nil {
			return nil, fmt.Errorf("upsert points [%d:%d]: %w", start, end, err)
		}
	}

	if err := uc.repo.SaveIndexStats(ctx, doc.ID, len(chunks), vectorSize, uc.collection); err != nil {
		return nil, fmt.Errorf("save index stats: %w", err)
	}

	return &domain.IndexStats{
		DocID:          structured.DocID,
		Status:         string(domain.StatusIndexed),
		Collection:     uc.collection,
		StructuredKey:  structuredKey,
		DocType:        structured.DocType,
		ChunkCount:     len(chunks),
		VectorSize:     vectorSize,
		PointsUpserted: len(points),
	}, nil
}

// loadStructuredDocument resolves the structured JSON by trying the recorded
// doc type first, then the remaining kinds. Documents structured before a
// reclassification keep working.
func loadStructuredDocument(ctx context.Context, storage ports.ObjectStorage, doc *domain.Document) (domain.StructuredDocument, string, error) {
	candidates := []domain.DocType{doc.DocType, domain.DocTypeTDR, domain.DocTypeAMI, domain.DocTypeOther}
	seen := map[domain.DocType]bool{}
	for _, docType := range candidates {
		if docType == "" || docType == domain.DocTypeUnknown || seen[docType] {
			continue
		}
		seen[docType] = true

		key := StructuredObjectKey(doc.ProcessedPrefix, docType)
		ok, err := storage.Exists(ctx, doc.ProcessedBucket, key)
		if err != nil {
			return domain.StructuredDocument{}, "", fmt.Errorf("check structured object: %w", err)
		}
		if !ok {
			continue
		}

		payload, err := storage.GetText(ctx, doc.ProcessedBucket, key)
		if err != nil {
			return domain.StructuredDocument{}, "", fmt.Errorf("load structured object: %w", err)
		}
		var structured domain.StructuredDocument
		if err := json.Unmarshal([]byte(payload), &structured); err != nil {
			return domain.StructuredDocument{}, "", domain.WrapError(domain.ErrInconsistentData, "index.load",
				fmt.Errorf("decode %s: %w", key, err))
		}
		return structured, key, nil
	}
	return domain.StructuredDocument{}, "", domain.WrapError(domain.ErrInvalidInput, "index.load",
		fmt.Errorf("no structured document for %s, run processing first", doc.ID))
}

func (uc *IndexDocumentUseCase) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += uc.embedBatchSize {
		end := start + uc.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}
		batch, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, domain.WrapError(domain.ErrInconsistentData, "index.embed",
				fmt.Errorf("batch returned %d vectors for %d texts", len(batch), len(texts)))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
