package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
	"github.com/ayoubray/tdrassist/internal/infrastructure/extractor/pdfext"
	"github.com/ayoubray/tdrassist/internal/infrastructure/extractor/plaintext"
	"github.com/ayoubray/tdrassist/internal/infrastructure/extractor/xlsxext"
)

// Dispatcher routes extraction to the format-specific extractor by filename
// extension.
type Dispatcher struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
	xlsx  ports.TextExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	return &Dispatcher{
		plain: plaintext.NewExtractor(storage),
		pdf:   pdfext.NewExtractor(storage),
		xlsx:  xlsxext.NewExtractor(storage),
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (domain.Extraction, error) {
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".txt", ".md", ".markdown":
		return d.plain.Extract(ctx, doc)
	case ".pdf":
		return d.pdf.Extract(ctx, doc)
	case ".xlsx", ".xlsm":
		return d.xlsx.Extract(ctx, doc)
	default:
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "extractor.Extract",
			fmt.Errorf("unsupported file format: %s", doc.Filename))
	}
}

// SupportedExtension reports whether uploads with this filename can be
// extracted later, so ingestion can reject unusable files up front.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".pdf", ".xlsx", ".xlsm":
		return true
	default:
		return false
	}
}
