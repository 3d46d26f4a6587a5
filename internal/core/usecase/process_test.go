package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

func processTestDocument() *domain.Document {
	return &domain.Document{
		ID:              "doc-1",
		Filename:        "tdr.pdf",
		Status:          domain.StatusUploaded,
		RawBucket:       "raw",
		RawObjectKey:    "doc-1/tdr.pdf",
		ProcessedBucket: "processed",
		ProcessedPrefix: "doc-1/",
	}
}

func TestProcessStoresArtifactsAndPublishesIndexEvent(t *testing.T) {
	repo := newFakeRepo(processTestDocument())
	storage := newFakeStorage()
	queue := &fakeQueue{}
	uc := NewProcessDocumentUseCase(
		repo,
		storage,
		&fakeExtractor{extraction: domain.Extraction{Text: "TERMES DE REFERENCE ...", Markdown: "| a | b |"}},
		&fakeClassifier{docType: domain.DocTypeTDR},
		&fakeStructurer{structured: domain.StructuredDocument{
			Sections: domain.Sections{Mission: "Réaliser l'étude."},
		}},
		queue,
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if got := storage.objects["processed/doc-1/extracted/extracted.txt"]; got != "TERMES DE REFERENCE ..." {
		t.Fatalf("extracted text = %q", got)
	}
	if got := storage.objects["processed/doc-1/extracted/extracted.md"]; got != "| a | b |" {
		t.Fatalf("extracted markdown = %q", got)
	}

	payload, ok := storage.objects["processed/doc-1/structured/tdr_structured.json"]
	if !ok {
		t.Fatalf("structured JSON missing, stored keys: %v", storage.objects)
	}
	var structured domain.StructuredDocument
	if err := json.Unmarshal([]byte(payload), &structured); err != nil {
		t.Fatalf("decode structured JSON: %v", err)
	}
	if structured.DocID != "doc-1" || structured.DocType != domain.DocTypeTDR {
		t.Fatalf("unexpected structured document: %+v", structured)
	}
	if structured.Sections.Mission != "Réaliser l'étude." {
		t.Fatalf("mission lost: %+v", structured.Sections)
	}

	if repo.structSaved["doc-1"] != domain.DocTypeTDR {
		t.Fatalf("structuring not persisted: %v", repo.structSaved)
	}
	if len(queue.indexPublished) != 1 || queue.indexPublished[0] != "doc-1" {
		t.Fatalf("unexpected index publishes: %v", queue.indexPublished)
	}
}

func TestProcessMarksFailedOnExtractionError(t *testing.T) {
	repo := newFakeRepo(processTestDocument())
	uc := NewProcessDocumentUseCase(
		repo,
		newFakeStorage(),
		&fakeExtractor{err: errors.New("corrupt pdf")},
		&fakeClassifier{docType: domain.DocTypeTDR},
		&fakeStructurer{},
		&fakeQueue{},
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil || !strings.Contains(err.Error(), "corrupt pdf") {
		t.Fatalf("expected extraction error, got %v", err)
	}

	if len(repo.statusUpdates) == 0 {
		t.Fatal("expected a status update")
	}
	last := repo.statusUpdates[len(repo.statusUpdates)-1]
	if !strings.HasPrefix(last, "doc-1:failed:") {
		t.Fatalf("expected failed status, got %q", last)
	}
}

func TestProcessRejectsEmptyExtraction(t *testing.T) {
	repo := newFakeRepo(processTestDocument())
	uc := NewProcessDocumentUseCase(
		repo,
		newFakeStorage(),
		&fakeExtractor{extraction: domain.Extraction{Text: ""}},
		&fakeClassifier{docType: domain.DocTypeOther},
		&fakeStructurer{},
		&fakeQueue{},
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
