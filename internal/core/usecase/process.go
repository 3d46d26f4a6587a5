package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
)

// ProcessDocumentUseCase runs the extract + classify + structure stage. It
// persists every intermediate artifact so indexing can be re-run from the
// structured JSON without touching the raw file again.
type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	storage    ports.ObjectStorage
	extractor  ports.TextExtractor
	classifier ports.DocTypeClassifier
	structurer ports.DocumentStructurer
	queue      ports.MessageQueue
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	classifier ports.DocTypeClassifier,
	structurer ports.DocumentStructurer,
	queue ports.MessageQueue,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		storage:    storage,
		extractor:  extractor,
		classifier: classifier,
		structurer: structurer,
		queue:      queue,
	}
}

// StructuredObjectKey is the processed-bucket key (relative to the document
// prefix) of the structured JSON for one document kind.
func StructuredObjectKey(prefix string, docType domain.DocType) string {
	return fmt.Sprintf("%sstructured/%s_structured.json", prefix, string(docType))
}

// ExtractedObjectKey is the processed-bucket key of the extracted text
// artifact; kind is "txt" or "md".
func ExtractedObjectKey(prefix, kind string) string {
	return fmt.Sprintf("%sextracted/extracted.%s", prefix, kind)
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	ext, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if ext.Text == "" {
		return domain.WrapError(domain.ErrInvalidInput, "process.extract", errors.New("empty extracted text"))
	}

	if err := uc.storage.PutText(ctx, doc.ProcessedBucket, ExtractedObjectKey(doc.ProcessedPrefix, "txt"), ext.Text, "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("store extracted text: %w", err)
	}
	if ext.Markdown != "" {
		if err := uc.storage.PutText(ctx, doc.ProcessedBucket, ExtractedObjectKey(doc.ProcessedPrefix, "md"), ext.Markdown, "text/markdown; charset=utf-8"); err != nil {
			return fmt.Errorf("store extracted markdown: %w", err)
		}
	}
	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusExtracted, ""); err != nil {
		return fmt.Errorf("set status=extracted: %w", err)
	}

	docType := uc.classifier.Classify(ext.Text)

	structured := uc.structurer.Structure(ext.Text, ext.Markdown, docType)
	structured.DocID = doc.ID

	payload, err := json.MarshalIndent(structured, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal structured document: %w", err)
	}
	key := StructuredObjectKey(doc.ProcessedPrefix, structured.DocType)
	if err := uc.storage.PutText(ctx, doc.ProcessedBucket, key, string(payload), "application/json"); err != nil {
		return fmt.Errorf("store structured document: %w", err)
	}

	if err := uc.repo.SaveStructuring(ctx, doc.ID, structured.DocType, structured.Metadata); err != nil {
		return fmt.Errorf("save structuring result: %w", err)
	}

	if err := uc.queue.PublishIndexRequested(ctx, doc.ID); err != nil {
		return fmt.Errorf("publish index event: %w", err)
	}
	return nil
}
