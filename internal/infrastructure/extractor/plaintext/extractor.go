package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (domain.Extraction, error) {
	reader, err := e.storage.Open(ctx, doc.RawBucket, doc.RawObjectKey)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "plaintext.Extract",
			fmt.Errorf("not valid UTF-8: %s", doc.Filename))
	}

	text := strings.TrimSpace(string(raw))
	kind := "txt"
	if strings.HasSuffix(strings.ToLower(doc.Filename), ".md") {
		// Markdown sources may carry pipe tables worth keeping for the
		// table-aware pipeline stages.
		kind = "md"
		return domain.Extraction{Text: text, Markdown: text, Kind: kind}, nil
	}
	return domain.Extraction{Text: text, Kind: kind}, nil
}
