package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
)

// FallbackAnswer is returned whenever generation is impossible or the
// retrieved context carries no usable information.
const FallbackAnswer = "Je ne sais pas."

const sourceSnippetChars = 400

// AnswerUseCase assembles a bounded context from the best-ranked chunks and
// asks the generative backend for a grounded answer. The single best hit is
// widened with its immediate neighbor chunks, which the deterministic
// point-id scheme makes addressable without a new search.
type AnswerUseCase struct {
	search    ports.SearchService
	vectorDB  ports.VectorStore
	generator ports.AnswerGenerator
	logger    *slog.Logger

	topDocs         int
	snippetsPerDoc  int
	maxContextChars int
	maxChunkChars   int
	expandRadius    int
}

func NewAnswerUseCase(
	search ports.SearchService,
	vectorDB ports.VectorStore,
	generator ports.AnswerGenerator,
	logger *slog.Logger,
	topDocs, snippetsPerDoc, maxContextChars, maxChunkChars, expandRadius int,
) *AnswerUseCase {
	if topDocs <= 0 {
		topDocs = 1
	}
	if snippetsPerDoc <= 0 {
		snippetsPerDoc = 2
	}
	if maxContextChars <= 0 {
		maxContextChars = 1500
	}
	if maxChunkChars <= 0 {
		maxChunkChars = 2500
	}
	return &AnswerUseCase{
		search:          search,
		vectorDB:        vectorDB,
		generator:       generator,
		logger:          logger,
		topDocs:         topDocs,
		snippetsPerDoc:  snippetsPerDoc,
		maxContextChars: maxContextChars,
		maxChunkChars:   maxChunkChars,
		expandRadius:    expandRadius,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, query string, topK int, filters domain.SearchFilters) (*domain.AnswerResult, error) {
	searchResult, err := uc.search.Search(ctx, query, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	result := &domain.AnswerResult{
		Query:      searchResult.Query,
		Filters:    filters,
		TopK:       searchResult.TopK,
		SearchMode: searchResult.Mode,
		Sources:    []domain.AnswerSource{},
	}

	blocks, sources, contextChars := uc.buildContext(ctx, searchResult)
	result.Sources = sources
	result.ContextChars = contextChars
	if len(blocks) == 0 {
		result.Answer = FallbackAnswer
		return result, nil
	}

	prompt := buildPrompt(searchResult.Query, blocks)
	answer, err := uc.generator.Generate(ctx, prompt)
	if err != nil {
		uc.logger.Warn("answer generation failed", "error", err)
		result.Answer = FallbackAnswer
		return result, nil
	}
	if strings.TrimSpace(answer) == "" {
		answer = FallbackAnswer
	}
	result.Answer = answer
	return result, nil
}

// baseHit is one snippet selected from the search result: the material the
// context is assembled from before neighbor expansion.
type baseHit struct {
	docID      string
	docType    domain.DocType
	metadata   domain.Metadata
	section    string
	chunkIndex *int
	score      float64
	snippet    string
}

// contextRef is one chunk wanted in the context, addressable by its
// deterministic point id. score is nil for neighbor-expansion entries.
type contextRef struct {
	docID    string
	docType  domain.DocType
	metadata domain.Metadata
	section  string
	index    int
	pointID  string
	score    *float64
	snippet  string
}

// buildContext mirrors the retrieval-side assembly: collect the best snippets
// per selected document, widen the single best hit with its section-local
// neighbors, resolve everything by point id, then emit provenance-tagged
// blocks until the character budget would be exceeded. Lexical-fallback hits
// carry no chunk index and are appended from their snippet text at the end.
func (uc *AnswerUseCase) buildContext(ctx context.Context, searchResult *domain.SearchResult) ([]string, []domain.AnswerSource, int) {
	base := uc.collectBaseHits(searchResult)

	refs := uc.wantedRefs(base)
	resolved := uc.retrieveRefs(ctx, refs)

	var blocks []string
	sources := []domain.AnswerSource{}
	contextChars := 0

	admit := func(block string) bool {
		return contextChars+len(block) <= uc.maxContextChars
	}

	for _, ref := range refs {
		chunk, ok := resolved[ref.pointID]
		text := strings.TrimSpace(chunk.Text)
		if text != "" && domain.IsNoiseText(text) {
			continue
		}
		if text == "" {
			text = strings.TrimSpace(ref.snippet)
		}
		if text == "" {
			continue
		}
		text = capChars(text, uc.maxChunkChars)

		block := fmt.Sprintf("%s\n[SOURCE doc_id=%s section=%s chunk_index=%d]\n",
			text, ref.docID, ref.section, ref.index)
		if !admit(block) {
			break
		}
		blocks = append(blocks, block)
		contextChars += len(block)

		docType := ref.docType
		metadata := ref.metadata
		if ok {
			if chunk.DocType != "" {
				docType = chunk.DocType
			}
			metadata = chunk.Metadata
		}
		idx := ref.index
		sources = append(sources, domain.AnswerSource{
			DocID:      ref.docID,
			DocType:    docType,
			Section:    ref.section,
			ChunkIndex: &idx,
			Score:      ref.score,
			Metadata:   metadata,
			Snippet:    capChars(text, sourceSnippetChars),
		})
	}

	for _, hit := range base {
		if hit.chunkIndex != nil {
			continue
		}
		text := strings.TrimSpace(hit.snippet)
		if text == "" {
			continue
		}
		text = capChars(text, uc.maxChunkChars)

		block := fmt.Sprintf("%s\n[SOURCE doc_id=%s section=%s chunk_index=%s]\n",
			text, hit.docID, hit.section, chunkIndexLabel(nil))
		if !admit(block) {
			break
		}
		blocks = append(blocks, block)
		contextChars += len(block)

		score := hit.score
		sources = append(sources, domain.AnswerSource{
			DocID:    hit.docID,
			DocType:  hit.docType,
			Section:  hit.section,
			Score:    &score,
			Metadata: hit.metadata,
			Snippet:  capChars(text, sourceSnippetChars),
		})
	}

	return blocks, sources, contextChars
}

func (uc *AnswerUseCase) collectBaseHits(searchResult *domain.SearchResult) []baseHit {
	docs := searchResult.Results
	if len(docs) > uc.topDocs {
		docs = docs[:uc.topDocs]
	}

	var base []baseHit
	for _, doc := range docs {
		snippets := append([]domain.Snippet(nil), doc.Snippets...)
		sort.SliceStable(snippets, func(i, j int) bool {
			return snippets[i].Score > snippets[j].Score
		})
		if len(snippets) > uc.snippetsPerDoc {
			snippets = snippets[:uc.snippetsPerDoc]
		}
		for _, snippet := range snippets {
			if snippet.Section == "" {
				continue
			}
			base = append(base, baseHit{
				docID:      doc.DocID,
				docType:    doc.DocType,
				metadata:   doc.Metadata,
				section:    snippet.Section,
				chunkIndex: snippet.ChunkIndex,
				score:      snippet.Score,
				snippet:    snippet.Snippet,
			})
		}
	}
	return base
}

// wantedRefs lists the indexed base hits in their search order, then the
// neighbors of the single best hit. Table and per-task chunks are never
// widened: their neighbors are unrelated rows or tasks, not continuations.
func (uc *AnswerUseCase) wantedRefs(base []baseHit) []contextRef {
	var refs []contextRef
	seen := map[string]bool{}

	add := func(ref contextRef) {
		id, err := domain.PointID(ref.docID, ref.section, ref.index)
		if err != nil || seen[id] {
			return
		}
		seen[id] = true
		ref.pointID = id
		refs = append(refs, ref)
	}

	var best *baseHit
	for i := range base {
		hit := base[i]
		if hit.chunkIndex == nil {
			continue
		}
		score := hit.score
		add(contextRef{
			docID:    hit.docID,
			docType:  hit.docType,
			metadata: hit.metadata,
			section:  hit.section,
			index:    *hit.chunkIndex,
			score:    &score,
			snippet:  hit.snippet,
		})
		if best == nil || hit.score > best.score {
			best = &base[i]
		}
	}

	if best == nil || uc.expandRadius <= 0 || !expandableSection(best.section) {
		return refs
	}
	center := *best.chunkIndex
	for d := 1; d <= uc.expandRadius; d++ {
		for _, idx := range []int{center - d, center + d} {
			if idx < 0 {
				continue
			}
			add(contextRef{
				docID:    best.docID,
				docType:  best.docType,
				metadata: best.metadata,
				section:  best.section,
				index:    idx,
			})
		}
	}
	return refs
}

func (uc *AnswerUseCase) retrieveRefs(ctx context.Context, refs []contextRef) map[string]domain.Chunk {
	if len(refs) == 0 {
		return map[string]domain.Chunk{}
	}
	pointIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		pointIDs = append(pointIDs, ref.pointID)
	}
	chunks, err := uc.vectorDB.Retrieve(ctx, pointIDs)
	if err != nil {
		uc.logger.Warn("chunk retrieval failed, using snippets", "error", err)
		return map[string]domain.Chunk{}
	}
	return chunks
}

func expandableSection(section string) bool {
	return !strings.HasPrefix(section, "table:") && section != "tache:item"
}

func chunkIndexLabel(idx *int) string {
	if idx == nil {
		return "-"
	}
	return strconv.Itoa(*idx)
}

func capChars(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := alignRuneStart(text, limit)
	return strings.TrimSpace(text[:cut])
}

func buildPrompt(query string, blocks []string) string {
	var b strings.Builder
	b.WriteString("Tu es un assistant spécialisé dans l'analyse de documents de passation de marchés ")
	b.WriteString("(termes de référence, avis à manifestation d'intérêt).\n")
	b.WriteString("Réponds à la question en te basant UNIQUEMENT sur le contexte fourni.\n")
	b.WriteString("Si le contexte ne contient pas la réponse, dis : \"" + FallbackAnswer + "\"\n\n")
	b.WriteString("CONTEXTE:\n")
	b.WriteString(strings.Join(blocks, "\n---\n"))
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\nRÉPONSE:")
	return b.String()
}
