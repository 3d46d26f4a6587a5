package xlsxext

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
)

// Extractor flattens workbook sheets into text, and renders each sheet as a
// markdown pipe table so downstream table enrichment sees the structure.
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

	book, err := excelize.OpenReader(reader)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "xlsxext.Extract",
			fmt.Errorf("open workbook %s: %w", doc.Filename, err))
	}
	defer book.Close()

	var text strings.Builder
	var markdown strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.Extraction{}, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
			markdown.WriteString("\n\n")
		}
		text.WriteString(sheet + "\n")
		markdown.WriteString("## " + sheet + "\n\n")
		writeSheet(&text, &markdown, rows)
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return domain.Extraction{}, domain.WrapError(domain.ErrInvalidInput, "xlsxext.Extract",
			fmt.Errorf("empty workbook %s", doc.Filename))
	}
	return domain.Extraction{Text: out, Markdown: strings.TrimSpace(markdown.String()), Kind: "xlsx"}, nil
}

func writeSheet(text, markdown *strings.Builder, rows [][]string) {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return
	}

	for i, row := range rows {
		cells := make([]string, width)
		for j := range cells {
			if j < len(row) {
				cells[j] = strings.TrimSpace(strings.ReplaceAll(row[j], "|", "/"))
			}
		}
		text.WriteString(strings.Join(cells, " ") + "\n")
		markdown.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		if i == 0 {
			seps := make([]string, width)
			for j := range seps {
				seps[j] = "---"
			}
			markdown.WriteString("| " + strings.Join(seps, " | ") + " |\n")
		}
	}
}
