package structuring

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

const (
	maxTableBulletRows = 12
	maxSectionAppend   = 4000
)

type markdownTable struct {
	headers []string
	rows    [][]string
}

var (
	tableSepRx    = regexp.MustCompile(`^\s*\|?[\s:\-]*\-{3,}[\s:\-|]*$`)
	headerNormRx  = regexp.MustCompile(`[^a-z0-9à-ÿ]+`)
	headerSpaceRx = regexp.MustCompile(`\s+`)
)

// extractMarkdownTables finds pipe tables: a header row, a separator row, then
// contiguous data rows whose cell count matches the header.
func extractMarkdownTables(markdown string) []markdownTable {
	lines := strings.Split(markdown, "\n")
	var tables []markdownTable

	for i := 0; i < len(lines)-1; i++ {
		if !strings.Contains(lines[i], "|") {
			continue
		}
		if !strings.Contains(lines[i+1], "|") || !tableSepRx.MatchString(lines[i+1]) {
			continue
		}
		headers := splitTableRow(lines[i])
		if len(headers) == 0 {
			continue
		}

		var rows [][]string
		j := i + 2
		for ; j < len(lines); j++ {
			if !strings.Contains(lines[j], "|") || len(lines[j]) > 500 {
				break
			}
			cells := splitTableRow(lines[j])
			if len(cells) == len(headers) {
				rows = append(rows, cells)
			}
		}
		tables = append(tables, markdownTable{headers: headers, rows: rows})
		i = j - 1
	}
	return tables
}

func splitTableRow(line string) []string {
	parts := strings.Split(line, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// signature is the normalized header line used for routing a table to a
// section.
func (t markdownTable) signature() string {
	normed := make([]string, 0, len(t.headers))
	for _, h := range t.headers {
		n := strings.ToLower(strings.ReplaceAll(h, "’", "'"))
		n = headerNormRx.ReplaceAllString(n, " ")
		n = strings.TrimSpace(headerSpaceRx.ReplaceAllString(n, " "))
		normed = append(normed, n)
	}
	return strings.Join(normed, " ")
}

func (t markdownTable) bullets() string {
	rows := t.rows
	if len(rows) > maxTableBulletRows {
		rows = rows[:maxTableBulletRows]
	}
	var b strings.Builder
	for _, row := range rows {
		var cells []string
		for i, cell := range row {
			if cell == "" {
				continue
			}
			cells = append(cells, fmt.Sprintf("%s: %s", t.headers[i], cell))
		}
		if len(cells) == 0 {
			continue
		}
		b.WriteString("- ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func signatureMatches(sig string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(sig, k) {
			return true
		}
	}
	return false
}

// enrichFromTables routes markdown tables into sections by header signature.
// Evaluation and candidature tables are exclusive; the rest may feed several
// sections, and task tables feed both mission and the dedicated table bucket.
func (r *Rules) enrichFromTables(sections *domain.Sections, markdown string) {
	if strings.TrimSpace(markdown) == "" {
		return
	}
	for _, t := range extractMarkdownTables(markdown) {
		bullets := t.bullets()
		if bullets == "" {
			continue
		}
		sig := t.signature()

		if signatureMatches(sig, r.tableSignatures[domain.SectionEvaluation]) {
			appendSection(sections, domain.SectionEvaluation, "Critères d'évaluation (extraits de tableaux) :", bullets)
			continue
		}
		if signatureMatches(sig, r.tableSignatures[domain.SectionCandidature]) {
			appendSection(sections, domain.SectionCandidature, "Candidature / Soumission (extraits de tableaux) :", bullets)
			continue
		}
		if signatureMatches(sig, r.tableSignatures[domain.SectionLivrables]) {
			appendSection(sections, domain.SectionLivrables, "Livrables (extraits de tableaux) :", bullets)
		}
		if signatureMatches(sig, r.tableSignatures[domain.SectionPlanning]) {
			appendSection(sections, domain.SectionPlanning, "Planning (extraits de tableaux) :", bullets)
		}
		if signatureMatches(sig, r.tableSignatures[domain.SectionProfil]) {
			appendSection(sections, domain.SectionProfil, "Profil / Qualifications (extraits de tableaux) :", bullets)
		}
		if signatureMatches(sig, r.tableSignatures[domain.SectionTaches]) {
			appendSection(sections, domain.SectionMission, "Activités / Tâches (extraits de tableaux) :", bullets)
			appendSection(sections, domain.SectionTachesTable, "Tâches (tableau) :", bullets)
		}
	}
}

// appendSection adds a titled bullet block to a section, idempotently and
// capped so table spam cannot drown the prose.
func appendSection(sections *domain.Sections, name, title, bullets string) {
	cur := sections.Get(name)
	if strings.Contains(cur, bullets) || len(cur) > maxSectionAppend {
		return
	}
	block := title + "\n" + bullets
	if strings.TrimSpace(cur) == "" {
		sections.Set(name, block)
		return
	}
	sections.Set(name, cur+"\n\n"+block)
}
