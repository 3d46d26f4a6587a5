package ports

import (
	"context"
	"io"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

// DocumentRepository persists and reads document rows.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveStructuring(ctx context.Context, id string, docType domain.DocType, meta domain.Metadata) error
	SaveIndexStats(ctx context.Context, id string, chunkCount, vectorSize int, collection string) error
	ListRecent(ctx context.Context, limit int) ([]domain.Document, error)
}

// ObjectStorage stores raw and processed artifacts by bucket and key.
type ObjectStorage interface {
	Save(ctx context.Context, bucket, key string, data io.Reader) error
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	GetText(ctx context.Context, bucket, key string) (string, error)
	PutText(ctx context.Context, bucket, key, text, contentType string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// MessageQueue publishes/consumes document pipeline events.
type MessageQueue interface {
	PublishExtractRequested(ctx context.Context, documentID string) error
	PublishIndexRequested(ctx context.Context, documentID string) error
	SubscribeExtractRequested(ctx context.Context, handler func(context.Context, string) error) error
	SubscribeIndexRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text (and markdown when the format carries
// table structure) from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.Extraction, error)
}

// DocTypeClassifier labels full text with a document kind. Pure: it never
// fails, ambiguous text comes back as DocTypeOther.
type DocTypeClassifier interface {
	Classify(text string) domain.DocType
}

// DocumentStructurer decomposes extracted text into the canonical section
// schema for the given document kind. The caller owns DocID assignment.
type DocumentStructurer interface {
	Structure(text, markdown string, docType domain.DocType) domain.StructuredDocument
}

// ChunkBuilder converts a structured document into bounded retrieval chunks.
type ChunkBuilder interface {
	Build(doc domain.StructuredDocument) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk and query text. Output order matches
// input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes chunk points and performs retrieval.
type VectorStore interface {
	EnsureCollection(ctx context.Context, vectorSize int) error
	UpsertChunks(ctx context.Context, points []domain.VectorPoint) error
	Query(ctx context.Context, queryVector []float32, limit int, filters domain.SearchFilters) ([]domain.SearchHit, error)
	Retrieve(ctx context.Context, pointIDs []string) (map[string]domain.Chunk, error)
	DeleteByDocID(ctx context.Context, docID string) error
	ScrollByDocID(ctx context.Context, docID string, limit int) ([]domain.Chunk, error)
}

// AnswerGenerator invokes the generative backend with a fully built prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
