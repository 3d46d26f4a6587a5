package domain

// Search result modes.
const (
	ModeHybrid          = "qdrant_hybrid_bm25"
	ModeFallbackLexical = "fallback_lexical"
)

type SearchFilters struct {
	DocType  string `json:"doc_type,omitempty"`
	Section  string `json:"section,omitempty"`
	Pays     string `json:"pays,omitempty"`
	Bailleur string `json:"bailleur,omitempty"`
	Domaine  string `json:"domaine,omitempty"`
	Region   string `json:"region,omitempty"`
	Language string `json:"language,omitempty"`
}

// SearchHit is one candidate chunk from the retrieval pool. ChunkIndex is nil
// only for lexical-fallback hits that never touched the vector store.
type SearchHit struct {
	DocID        string   `json:"doc_id"`
	DocType      DocType  `json:"doc_type"`
	Section      string   `json:"section"`
	ChunkIndex   *int     `json:"chunk_index"`
	Text         string   `json:"text"`
	Metadata     Metadata `json:"metadata"`
	ScoreVector  float64  `json:"score_vector"`
	ScoreLexical float64  `json:"score_bm25"`
	ScoreFused   float64  `json:"score"`
}

type Snippet struct {
	Section      string  `json:"section"`
	ChunkIndex   *int    `json:"chunk_index"`
	ScoreVector  float64 `json:"score_vector"`
	ScoreLexical float64 `json:"score_bm25"`
	Score        float64 `json:"score"`
	Snippet      string  `json:"snippet"`
}

// GroupedResult is one document in a search response: its score is the max
// fused score among its chunks, snippets are sorted by score descending.
type GroupedResult struct {
	DocID    string    `json:"doc_id"`
	DocType  DocType   `json:"doc_type"`
	Score    float64   `json:"score"`
	Metadata Metadata  `json:"metadata"`
	Snippets []Snippet `json:"snippets"`
}

type SearchResult struct {
	Mode        string          `json:"mode"`
	Query       string          `json:"query"`
	TopK        int             `json:"top_k"`
	Filters     SearchFilters   `json:"filters"`
	Results     []GroupedResult `json:"results"`
	Note        string          `json:"note,omitempty"`
	QdrantError string          `json:"qdrant_error,omitempty"`
}

type AnswerSource struct {
	DocID      string   `json:"doc_id"`
	DocType    DocType  `json:"doc_type"`
	Section    string   `json:"section"`
	ChunkIndex *int     `json:"chunk_index"`
	Score      *float64 `json:"score"`
	Metadata   Metadata `json:"metadata"`
	Snippet    string   `json:"snippet"`
}

type AnswerResult struct {
	Query        string         `json:"query"`
	Filters      SearchFilters  `json:"filters"`
	TopK         int            `json:"top_k"`
	SearchMode   string         `json:"search_mode"`
	Answer       string         `json:"answer"`
	Sources      []AnswerSource `json:"sources"`
	ContextChars int            `json:"context_chars"`
}

// IndexStats reports the outcome of one indexing run.
type IndexStats struct {
	DocID          string  `json:"doc_id"`
	Status         string  `json:"status"`
	Collection     string  `json:"collection"`
	StructuredKey  string  `json:"structured_key"`
	DocType        DocType `json:"doc_type"`
	ChunkCount     int     `json:"chunks"`
	VectorSize     int     `json:"vector_size"`
	PointsUpserted int     `json:"points_upserted"`
}
