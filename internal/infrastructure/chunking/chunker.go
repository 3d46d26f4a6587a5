package chunking

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

const (
	maxTablesPerSection = 8
	maxCriteresTables   = 10
	maxSummaryTasks     = 25
	maxItemTasks        = 40
	minTaskItemChars    = 8
	maxSkillsInChunk    = 80
	maxEmailsInChunk    = 20
)

// Chunker turns a structured document into retrieval chunks. Indices are
// 0-based and contiguous per (doc_id, section), which keeps neighbor
// addressing stable across re-indexing runs.
type Chunker struct {
	targetChars  int
	maxChars     int
	overlapChars int
}

func NewChunker(targetChars, maxChars, overlapChars int) *Chunker {
	return &Chunker{targetChars: targetChars, maxChars: maxChars, overlapChars: overlapChars}
}

var (
	tdrSectionOrder = []string{
		domain.SectionContexte,
		domain.SectionMission,
		domain.SectionLivrables,
		domain.SectionProfil,
		domain.SectionTaches,
		domain.SectionCompetences,
	}
	amiSectionOrder = []string{
		domain.SectionContexte,
		domain.SectionMission,
		domain.SectionProfil,
		domain.SectionLivrables,
		domain.SectionTaches,
	}
)

func (c *Chunker) Build(doc domain.StructuredDocument) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.DocID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunking.Build", fmt.Errorf("missing doc_id"))
	}

	b := &builder{chunker: c, doc: doc, indices: map[string]int{}}

	order := tdrSectionOrder
	if doc.DocType == domain.DocTypeAMI {
		order = amiSectionOrder
	}
	for _, section := range order {
		// Task and skill content is emitted through the list paths below,
		// never windowed as narrative.
		if section == domain.SectionTaches || section == domain.SectionCompetences {
			continue
		}
		b.addSection(section, doc.Sections.Get(section), maxTablesPerSection)
	}

	if len(doc.Taches) > 0 {
		summary := doc.Taches
		if len(summary) > maxSummaryTasks {
			summary = summary[:maxSummaryTasks]
		}
		b.emit(domain.SectionTaches, "Tâches / activités principales :\n- "+strings.Join(summary, "\n- "))

		items := doc.Taches
		if len(items) > maxItemTasks {
			items = items[:maxItemTasks]
		}
		for _, item := range items {
			if len(item) < minTaskItemChars {
				continue
			}
			b.emit("tache:item", fmt.Sprintf("[task:%s] %s", shortHash(item), item))
		}
	}

	if len(doc.Competences) > 0 {
		skills := doc.Competences
		if len(skills) > maxSkillsInChunk {
			skills = skills[:maxSkillsInChunk]
		}
		b.emit(domain.SectionCompetences, "Compétences / mots-clés détectés : "+strings.Join(skills, ", "))
	}

	if doc.AMIFields != nil {
		b.addAMIFields(doc.AMIFields)
	}

	return b.chunks, nil
}

type builder struct {
	chunker *Chunker
	doc     domain.StructuredDocument
	indices map[string]int
	chunks  []domain.Chunk
}

// addSection splits tables out of the section text, emits them under the
// table namespace, then windows the remaining narrative.
func (b *builder) addSection(section, text string, tableCap int) {
	if strings.TrimSpace(text) == "" {
		return
	}
	narrative, tables := extractTables(text)
	if len(tables) > tableCap {
		tables = tables[:tableCap]
	}
	for _, t := range tables {
		b.emit("table:"+section, t)
	}
	for _, w := range b.chunker.buildWindows(narrative) {
		b.emit(section, w)
	}
}

func (b *builder) addAMIFields(f *domain.AMIFields) {
	if strings.TrimSpace(f.CriteresSelection) != "" {
		narrative, tables := extractTables(f.CriteresSelection)
		if len(tables) > maxCriteresTables {
			tables = tables[:maxCriteresTables]
		}
		for _, t := range tables {
			b.emit("table:ami_criteres_selection", t)
		}
		for _, w := range b.chunker.buildWindows(narrative) {
			b.emit("ami:criteres_selection", w)
		}
	}
	if f.Deadline != "" {
		b.emit("ami:deadline", "Date limite de soumission : "+f.Deadline)
	}
	if f.SelectionMethod != "" {
		b.emit("ami:selection_method", "Méthode de sélection : "+f.SelectionMethod)
	}
	if len(f.Emails) > 0 {
		emails := f.Emails
		if len(emails) > maxEmailsInChunk {
			emails = emails[:maxEmailsInChunk]
		}
		b.emit("ami:emails", "Contacts / emails : "+strings.Join(emails, ", "))
	}
}

// emit appends a chunk unless the text fails the degenerate-content guard.
func (b *builder) emit(section, text string) {
	text = strings.TrimSpace(text)
	if domain.IsNoiseText(text) || looksLikeTableDebris(text) {
		return
	}
	idx := b.indices[section]
	b.indices[section] = idx + 1
	b.chunks = append(b.chunks, domain.Chunk{
		DocID:       b.doc.DocID,
		DocType:     b.doc.DocType,
		Section:     section,
		ChunkIndex:  idx,
		Text:        text,
		Metadata:    b.doc.Metadata,
		Competences: b.doc.Competences,
	})
}

var (
	tableSeparatorRx = regexp.MustCompile(`(?m)^\s*\|?[\s:\-]+\|[\s:\-|]+\s*$`)
	wordRunRx        = regexp.MustCompile(`\s+`)
	alnumRx          = regexp.MustCompile(`[A-Za-zÀ-ÿ0-9]`)
)

// looksLikeTableDebris rejects stray table fragments: lots of pipes and
// almost no alphanumeric content.
func looksLikeTableDebris(text string) bool {
	pipes := strings.Count(text, "|")
	if pipes == 0 {
		return false
	}
	alnum := len(alnumRx.FindAllString(text, pipes*2+1))
	return alnum < pipes*2
}

// extractTables removes pipe-table blocks from the text and returns the
// remaining narrative plus each table block as one string. A block is a run
// of contiguous pipe-bearing lines (each under 500 chars) containing a
// separator row.
func extractTables(text string) (string, []string) {
	lines := strings.Split(text, "\n")
	var narrative []string
	var tables []string

	i := 0
	for i < len(lines) {
		if !isTableLine(lines[i]) {
			narrative = append(narrative, lines[i])
			i++
			continue
		}
		j := i
		hasSeparator := false
		for j < len(lines) && isTableLine(lines[j]) {
			if tableSeparatorRx.MatchString(lines[j]) {
				hasSeparator = true
			}
			j++
		}
		block := strings.TrimSpace(strings.Join(lines[i:j], "\n"))
		if hasSeparator && block != "" {
			tables = append(tables, block)
		} else {
			narrative = append(narrative, lines[i:j]...)
		}
		i = j
	}
	return strings.Join(narrative, "\n"), tables
}

func isTableLine(line string) bool {
	return strings.Contains(line, "|") && len(line) <= 500
}

// buildWindows packs narrative units greedily up to the target size, carrying
// a trailing overlap into the next window. Units larger than the hard cap are
// sliced into fixed windows with the same overlap.
func (c *Chunker) buildWindows(text string) []string {
	units := splitUnits(text, c.targetChars)

	var out []string
	cur := ""
	seedOnly := true

	flush := func() {
		s := strings.TrimSpace(cur)
		if s == "" || seedOnly {
			cur, seedOnly = "", true
			return
		}
		s = capAtRuneBound(s, c.maxChars)
		out = append(out, s)
		cur, seedOnly = overlapTail(s, c.overlapChars), true
	}

	for _, u := range units {
		if len(u) > c.maxChars {
			flush()
			out = append(out, c.hardSlice(u)...)
			cur, seedOnly = "", true
			continue
		}
		if !seedOnly && len(cur)+1+len(u) > c.targetChars {
			flush()
		}
		if cur == "" {
			cur = u
		} else {
			cur += " " + u
		}
		seedOnly = false
	}
	flush()
	return out
}

func (c *Chunker) hardSlice(u string) []string {
	var out []string
	start := 0
	for start < len(u) {
		end := start + c.maxChars
		if end >= len(u) {
			out = append(out, strings.TrimSpace(sliceRuneBound(u, start, len(u))))
			break
		}
		out = append(out, strings.TrimSpace(sliceRuneBound(u, start, end)))
		next := end - c.overlapChars
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// splitUnits breaks narrative into paragraphs, then splits paragraphs longer
// than the target on sentence punctuation.
func splitUnits(text string, target int) []string {
	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		p := strings.TrimSpace(wordRunRx.ReplaceAllString(para, " "))
		if p == "" {
			continue
		}
		if len(p) <= target {
			units = append(units, p)
			continue
		}
		units = append(units, splitSentences(p)...)
	}
	return units
}

func splitSentences(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p)-1; i++ {
		switch p[i] {
		case '.', '!', '?', ';', ':':
			if p[i+1] == ' ' {
				if s := strings.TrimSpace(p[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 2
			}
		}
	}
	if s := strings.TrimSpace(p[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func overlapTail(s string, overlap int) string {
	if overlap <= 0 || len(s) <= overlap {
		if overlap <= 0 {
			return ""
		}
		return s
	}
	start := len(s) - overlap
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

func capAtRuneBound(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(sliceRuneBound(s, 0, max))
}

func sliceRuneBound(s string, start, end int) string {
	for start > 0 && start < len(s) && !utf8.RuneStart(s[start]) {
		start--
	}
	for end > start && end < len(s) && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[start:end]
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:10]
}
