package pdfext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

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

	// The pdf library wants a seekable file, so spool to a temp file.
	tmp, err := os.CreateTemp("", "extract-*.pdf")
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, reader); err != nil {
		return domain.Extraction{}, fmt.Errorf("spool pdf: %w", err)
	}

	f, rdr, err := pdf.Open(tmp.Name())
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "pdfext.Extract",
			fmt.Errorf("open pdf %s: %w", doc.Filename, err))
	}
	defer f.Close()

	var buf bytes.Buffer
	plain, err := rdr.GetPlainText()
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read pdf text: %w", err)
	}
	if _, err := io.Copy(&buf, plain); err != nil {
		return domain.Extraction{}, fmt.Errorf("read pdf buffer: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "pdfext.Extract",
			fmt.Errorf("no text layer in %s", doc.Filename))
	}
	return domain.Extraction{Text: text, Kind: "pdf"}, nil
}
