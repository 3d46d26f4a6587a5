package ports

import (
	"context"
	"io"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor runs the extract + structure stage for one document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentIndexer runs the purge + chunk + embed + upsert stage.
type DocumentIndexer interface {
	IndexByID(ctx context.Context, documentID string) (*domain.IndexStats, error)
}

// SearchService is the inbound contract for hybrid retrieval.
type SearchService interface {
	Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) (*domain.SearchResult, error)
}

// AnswerService is the inbound contract for retrieval-augmented answering.
type AnswerService interface {
	Answer(ctx context.Context, query string, topK int, filters domain.SearchFilters) (*domain.AnswerResult, error)
}

// DocumentReader is the inbound read model for document state and chunks.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListChunks(ctx context.Context, id string) ([]domain.Chunk, error)
}
