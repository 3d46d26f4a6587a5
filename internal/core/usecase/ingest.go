package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo            ports.DocumentRepository
	storage         ports.ObjectStorage
	queue           ports.MessageQueue
	rawBucket       string
	processedBucket string
	acceptFilename  func(string) bool
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	rawBucket, processedBucket string,
	acceptFilename func(string) bool,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:            repo,
		storage:         storage,
		queue:           queue,
		rawBucket:       rawBucket,
		processedBucket: processedBucket,
		acceptFilename:  acceptFilename,
	}
}

func (uc *IngestDocumentUseCase) Upload(ctx context.Context, filename string, body io.Reader) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest.Upload", errors.New("filename required"))
	}
	if uc.acceptFilename != nil && !uc.acceptFilename(filename) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest.Upload",
			fmt.Errorf("unsupported file format: %s", filename))
	}

	id := uuid.NewString()
	rawKey := fmt.Sprintf("%s/%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, uc.rawBucket, rawKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:              id,
		Filename:        filename,
		Status:          domain.StatusUploaded,
		DocType:         domain.DocTypeUnknown,
		RawBucket:       uc.rawBucket,
		RawObjectKey:    rawKey,
		ProcessedBucket: uc.processedBucket,
		ProcessedPrefix: id + "/",
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document row: %w", err)
	}

	if err := uc.queue.PublishExtractRequested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish extract event: %w", err)
	}

	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
