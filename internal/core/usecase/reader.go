package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
)

const maxChunkScroll = 1000

// DocumentReadUseCase serves document state and indexed chunk listings.
type DocumentReadUseCase struct {
	repo     ports.DocumentRepository
	vectorDB ports.VectorStore
}

func NewDocumentReadUseCase(repo ports.DocumentRepository, vectorDB ports.VectorStore) *DocumentReadUseCase {
	return &DocumentReadUseCase{repo: repo, vectorDB: vectorDB}
}

func (uc *DocumentReadUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *DocumentReadUseCase) ListChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks, err := uc.vectorDB.ScrollByDocID(ctx, doc.ID, maxChunkScroll)
	if err != nil {
		return nil, fmt.Errorf("scroll indexed chunks: %w", err)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Section != chunks[j].Section {
			return chunks[i].Section < chunks[j].Section
		}
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	return chunks, nil
}
