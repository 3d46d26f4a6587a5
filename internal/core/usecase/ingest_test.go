package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

func TestUploadStoresFileAndPublishesExtractEvent(t *testing.T) {
	repo := newFakeRepo()
	storage := newFakeStorage()
	queue := &fakeQueue{}
	uc := NewIngestDocumentUseCase(repo, storage, queue, "raw", "processed", nil)

	doc, err := uc.Upload(context.Background(), "TdR étude.pdf", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if doc.Status != domain.StatusUploaded || doc.DocType != domain.DocTypeUnknown {
		t.Fatalf("unexpected document state: %+v", doc)
	}
	if doc.RawBucket != "raw" || doc.ProcessedBucket != "processed" {
		t.Fatalf("unexpected buckets: %+v", doc)
	}
	if doc.ProcessedPrefix != doc.ID+"/" {
		t.Fatalf("unexpected processed prefix %q", doc.ProcessedPrefix)
	}
	if !strings.HasPrefix(doc.RawObjectKey, doc.ID+"/") {
		t.Fatalf("raw key %q not under document prefix", doc.RawObjectKey)
	}
	if strings.ContainsAny(doc.RawObjectKey[len(doc.ID)+1:], " é") {
		t.Fatalf("raw key %q not sanitized", doc.RawObjectKey)
	}

	if got := storage.objects["raw/"+doc.RawObjectKey]; got != "%PDF" {
		t.Fatalf("stored object = %q", got)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 created row, got %d", len(repo.created))
	}
	if len(queue.extractPublished) != 1 || queue.extractPublished[0] != doc.ID {
		t.Fatalf("unexpected publishes: %v", queue.extractPublished)
	}
}

func TestUploadRejectsEmptyFilename(t *testing.T) {
	uc := NewIngestDocumentUseCase(newFakeRepo(), newFakeStorage(), &fakeQueue{}, "raw", "processed", nil)
	_, err := uc.Upload(context.Background(), "   ", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	accept := func(name string) bool { return strings.HasSuffix(name, ".pdf") }
	uc := NewIngestDocumentUseCase(newFakeRepo(), newFakeStorage(), &fakeQueue{}, "raw", "processed", accept)
	_, err := uc.Upload(context.Background(), "scan.tiff", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"TdR étude.pdf":   "TdR__tude.pdf",
		"../../evil.txt":  "evil.txt",
		"rapport 2026.md": "rapport_2026.md",
		"":                "document.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
