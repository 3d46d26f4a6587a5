package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
)

const (
	defaultTopK     = 5
	maxTopK         = 50
	snippetLeadRuns = 80
	snippetWindow   = 320
)

// SearchUseCase performs hybrid retrieval: vector candidates from the store,
// re-scored with BM25 over the candidate pool, fused and grouped per
// document. When the vector path is unavailable it degrades to a bounded
// lexical scan over recently updated documents instead of failing.
type SearchUseCase struct {
	embedder ports.Embedder
	vectorDB ports.VectorStore
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	logger   *slog.Logger

	weightVector    float64
	weightLexical   float64
	poolMult        int
	perDocSnippets  int
	maxPerDocChunks int
	fallbackMaxDocs int
}

func NewSearchUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	logger *slog.Logger,
	weightVector, weightLexical float64,
	poolMult, perDocSnippets, maxPerDocChunks, fallbackMaxDocs int,
) *SearchUseCase {
	if weightVector <= 0 && weightLexical <= 0 {
		weightVector, weightLexical = 0.7, 0.3
	}
	if poolMult <= 0 {
		poolMult = 8
	}
	if perDocSnippets <= 0 {
		perDocSnippets = 3
	}
	if maxPerDocChunks <= 0 {
		maxPerDocChunks = 3
	}
	if fallbackMaxDocs <= 0 {
		fallbackMaxDocs = 50
	}
	return &SearchUseCase{
		embedder:        embedder,
		vectorDB:        vectorDB,
		repo:            repo,
		storage:         storage,
		logger:          logger,
		weightVector:    weightVector,
		weightLexical:   weightLexical,
		poolMult:        poolMult,
		perDocSnippets:  perDocSnippets,
		maxPerDocChunks: maxPerDocChunks,
		fallbackMaxDocs: fallbackMaxDocs,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) (*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("empty query"))
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	pool := topK * uc.poolMult
	if pool < topK {
		pool = topK
	}

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		uc.logger.Warn("query embedding failed, lexical fallback", "error", err)
		return uc.fallbackSearch(ctx, query, topK, filters, err)
	}

	hits, err := uc.vectorDB.Query(ctx, vector, pool, filters)
	if err != nil {
		uc.logger.Warn("vector query failed, lexical fallback", "error", err)
		return uc.fallbackSearch(ctx, query, topK, filters, err)
	}

	results := uc.fuseAndGroup(query, hits, topK)
	return &domain.SearchResult{
		Mode:    domain.ModeHybrid,
		Query:   query,
		TopK:    topK,
		Filters: filters,
		Results: results,
	}, nil
}

func (uc *SearchUseCase) fuseAndGroup(query string, pool []domain.SearchHit, topK int) []domain.GroupedResult {
	hits := make([]domain.SearchHit, 0, len(pool))
	for _, hit := range pool {
		if domain.IsNoiseText(hit.Text) {
			continue
		}
		hits = append(hits, hit)
	}
	if len(hits) == 0 {
		return []domain.GroupedResult{}
	}

	corpus := make([][]string, len(hits))
	for i, hit := range hits {
		corpus[i] = tokenize(hit.Text)
	}
	lexical := newBM25Okapi(corpus).Scores(tokenize(query))

	vectorScores := make([]float64, len(hits))
	for i, hit := range hits {
		vectorScores[i] = hit.ScoreVector
	}
	vectorNorm := minMaxNormalize(vectorScores)
	lexicalNorm := minMaxNormalize(lexical)

	for i := range hits {
		hits[i].ScoreLexical = lexical[i]
		hits[i].ScoreFused = uc.weightVector*vectorNorm[i] + uc.weightLexical*lexicalNorm[i]
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].ScoreFused > hits[j].ScoreFused
	})

	perDoc := make(map[string]int)
	groupIdx := make(map[string]int)
	var groups []domain.GroupedResult
	for _, hit := range hits {
		if perDoc[hit.DocID] >= uc.maxPerDocChunks {
			continue
		}
		perDoc[hit.DocID]++

		idx, ok := groupIdx[hit.DocID]
		if !ok {
			idx = len(groups)
			groupIdx[hit.DocID] = idx
			groups = append(groups, domain.GroupedResult{
				DocID:    hit.DocID,
				DocType:  hit.DocType,
				Score:    hit.ScoreFused,
				Metadata: hit.Metadata,
			})
		}
		if hit.ScoreFused > groups[idx].Score {
			groups[idx].Score = hit.ScoreFused
		}
		if len(groups[idx].Snippets) < uc.perDocSnippets {
			groups[idx].Snippets = append(groups[idx].Snippets, domain.Snippet{
				Section:      hit.Section,
				ChunkIndex:   hit.ChunkIndex,
				ScoreVector:  hit.ScoreVector,
				ScoreLexical: hit.ScoreLexical,
				Score:        hit.ScoreFused,
				Snippet:      makeSnippet(query, hit.Text),
			})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Score > groups[j].Score
	})
	if len(groups) > topK {
		groups = groups[:topK]
	}
	return groups
}

const (
	fallbackSectionCap = 2000
	fallbackMaxTasks   = 40
)

// fallbackSectionOrder is the section subset the lexical fallback scans when
// no section filter is given: the sections most likely to answer a query,
// kept small to stay fast.
var fallbackSectionOrder = []string{
	domain.SectionMission,
	domain.SectionLivrables,
	domain.SectionProfil,
	domain.SectionContexte,
	domain.SectionTaches,
}

type fallbackCandidate struct {
	docID    string
	docType  domain.DocType
	section  string
	text     string
	score    float64
	metadata domain.Metadata
}

// fallbackSearch scores the structured artifacts of recently updated
// documents with a cheap positional lexical score. It never sees the vector
// store, so its snippets carry a section but no chunk index.
func (uc *SearchUseCase) fallbackSearch(ctx context.Context, query string, topK int, filters domain.SearchFilters, cause error) (*domain.SearchResult, error) {
	docs, err := uc.repo.ListRecent(ctx, uc.fallbackMaxDocs)
	if err != nil {
		return nil, fmt.Errorf("lexical fallback unavailable: %w (vector path: %v)", err, cause)
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		tokens = []string{strings.ToLower(query)}
	}

	var candidates []fallbackCandidate
	for i := range docs {
		doc := &docs[i]
		if !matchesFallbackFilters(doc, filters) {
			continue
		}
		structured, _, err := loadStructuredDocument(ctx, uc.storage, doc)
		if err != nil {
			continue
		}
		docID := structured.DocID
		if docID == "" {
			docID = doc.ID
		}
		docType := structured.DocType
		if docType == "" || docType == domain.DocTypeUnknown {
			docType = doc.DocType
		}

		sections := fallbackSectionOrder
		if filters.Section != "" {
			sections = []string{filters.Section}
		}
		for _, section := range sections {
			content := fallbackSectionText(&structured, section)
			if content == "" {
				continue
			}
			score := keywordScore(tokens, content)
			if score <= 0 {
				continue
			}
			candidates = append(candidates, fallbackCandidate{
				docID:    docID,
				docType:  docType,
				section:  section,
				text:     capChars(content, fallbackSectionCap),
				score:    score,
				metadata: structured.Metadata,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	groupIdx := make(map[string]int)
	groups := []domain.GroupedResult{}
	for _, c := range candidates {
		idx, ok := groupIdx[c.docID]
		if !ok {
			idx = len(groups)
			groupIdx[c.docID] = idx
			groups = append(groups, domain.GroupedResult{
				DocID:    c.docID,
				DocType:  c.docType,
				Score:    c.score,
				Metadata: c.metadata,
			})
		}
		if c.score > groups[idx].Score {
			groups[idx].Score = c.score
		}
		if len(groups[idx].Snippets) < uc.perDocSnippets {
			groups[idx].Snippets = append(groups[idx].Snippets, domain.Snippet{
				Section: c.section,
				Score:   c.score,
				Snippet: makeSnippet(query, c.text),
			})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Score > groups[j].Score
	})

	return &domain.SearchResult{
		Mode:        domain.ModeFallbackLexical,
		Query:       query,
		TopK:        topK,
		Filters:     filters,
		Results:     groups,
		Note:        fmt.Sprintf("recherche lexicale de secours limitée aux %d documents les plus récents", uc.fallbackMaxDocs),
		QdrantError: cause.Error(),
	}, nil
}

// fallbackSectionText returns the scannable content of one section. The task
// section may live as a list rather than narrative text.
func fallbackSectionText(structured *domain.StructuredDocument, section string) string {
	content := strings.TrimSpace(structured.Sections.Get(section))
	if content == "" && section == domain.SectionTaches && len(structured.Taches) > 0 {
		items := structured.Taches
		if len(items) > fallbackMaxTasks {
			items = items[:fallbackMaxTasks]
		}
		content = "- " + strings.Join(items, "\n- ")
	}
	return content
}

var (
	yearTokenRx = regexp.MustCompile(`^\d{4}`)
	yearTextRx  = regexp.MustCompile(`\b\d{4}\b`)
)

// keywordScore is the cheap fallback-only lexical score: each query token
// contributes by how early it first appears, with small bonuses for an exact
// phrase match and for email- or year-shaped queries matching the text.
func keywordScore(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)

	score := 0.0
	for _, token := range tokens {
		if pos := strings.Index(lowered, token); pos >= 0 {
			score += 1.0 / math.Log(3.0+float64(pos))
		}
	}

	phrase := strings.Join(tokens, " ")
	if len(phrase) >= 10 && strings.Contains(lowered, phrase) {
		score += 0.8
	}

	for _, token := range tokens {
		if strings.Contains(token, "@") && strings.Contains(lowered, "@") {
			score += 0.4
			break
		}
	}
	for _, token := range tokens {
		if yearTokenRx.MatchString(token) && yearTextRx.MatchString(lowered) {
			score += 0.25
			break
		}
	}
	return score
}

func matchesFallbackFilters(doc *domain.Document, filters domain.SearchFilters) bool {
	match := func(want, got string) bool {
		return want == "" || strings.EqualFold(want, got)
	}
	return match(filters.DocType, string(doc.DocType)) &&
		match(filters.Pays, doc.Pays) &&
		match(filters.Bailleur, doc.Bailleur) &&
		match(filters.Domaine, doc.Domaine) &&
		match(filters.Region, doc.Region) &&
		match(filters.Language, doc.Language)
}

// makeSnippet centers the excerpt on the first query-term occurrence.
func makeSnippet(query, text string) string {
	lowered := strings.ToLower(text)
	pos := -1
	for _, token := range tokenize(query) {
		p := strings.Index(lowered, token)
		if p >= 0 && (pos < 0 || p < pos) {
			pos = p
		}
	}
	if pos < 0 {
		pos = 0
	}
	return snippetAt(text, pos)
}

func snippetAt(text string, pos int) string {
	if pos < 0 {
		pos = 0
	}
	start := pos - snippetLeadRuns
	if start < 0 {
		start = 0
	}
	end := start + snippetWindow
	if end > len(text) {
		end = len(text)
	}
	start = alignRuneStart(text, start)
	end = alignRuneStart(text, end)

	snippet := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet += "…"
	}
	return snippet
}

func alignRuneStart(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}
