package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ayoubray/tdrassist/internal/core/domain"
	"github.com/ayoubray/tdrassist/internal/core/ports"
	"github.com/ayoubray/tdrassist/internal/observability/metrics"
)

const serviceName = "api"

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

type Router struct {
	ingest  ports.DocumentIngestor
	reader  ports.DocumentReader
	indexer ports.DocumentIndexer
	search  ports.SearchService
	answer  ports.AnswerService

	metrics *metrics.HTTPServerMetrics
	ready   map[string]ReadinessCheck

	rateLimitRPS   float64
	rateLimitBurst int
	maxConcurrent  int
	maxQueueWait   time.Duration
}

type RouterOptions struct {
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxConcurrent   int
	MaxQueueWait    time.Duration
	ReadinessChecks map[string]ReadinessCheck
}

func NewRouter(
	ingest ports.DocumentIngestor,
	reader ports.DocumentReader,
	indexer ports.DocumentIndexer,
	search ports.SearchService,
	answer ports.AnswerService,
	serverMetrics *metrics.HTTPServerMetrics,
	options RouterOptions,
) *Router {
	maxQueueWait := options.MaxQueueWait
	if maxQueueWait <= 0 {
		maxQueueWait = 2 * time.Second
	}
	return &Router{
		ingest:         ingest,
		reader:         reader,
		indexer:        indexer,
		search:         search,
		answer:         answer,
		metrics:        serverMetrics,
		ready:          options.ReadinessChecks,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxConcurrent:  options.MaxConcurrent,
		maxQueueWait:   maxQueueWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/readyz", rt.readyz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentSubtree)
	mux.HandleFunc("/v1/index/", rt.reindexDocument)
	mux.HandleFunc("/v1/search", rt.searchDocuments)
	mux.HandleFunc("/v1/rag", rt.answerQuestion)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxConcurrent, rt.maxQueueWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}
	for name, check := range rt.ready {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// documentSubtree serves /v1/documents/{id} and /v1/documents/{id}/chunks.
func (rt *Router) documentSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch sub {
	case "":
		doc, err := rt.reader.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case "chunks":
		chunks, err := rt.reader.ListChunks(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"doc_id": id,
			"count":  len(chunks),
			"chunks": chunks,
		})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown document resource"})
	}
}

func (rt *Router) reindexDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/index/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	stats, err := rt.indexer.IndexByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type searchRequest struct {
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
	Filters struct {
		DocType  string `json:"doc_type"`
		Section  string `json:"section"`
		Pays     string `json:"pays"`
		Bailleur string `json:"bailleur"`
		Domaine  string `json:"domaine"`
		Region   string `json:"region"`
		Language string `json:"langue"`
	} `json:"filters"`
}

func (req *searchRequest) searchFilters() domain.SearchFilters {
	return domain.SearchFilters{
		DocType:  req.Filters.DocType,
		Section:  req.Filters.Section,
		Pays:     req.Filters.Pays,
		Bailleur: req.Filters.Bailleur,
		Domaine:  req.Filters.Domaine,
		Region:   req.Filters.Region,
		Language: req.Filters.Language,
	}
}

func (rt *Router) searchDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	result, err := rt.search.Search(r.Context(), req.Query, req.TopK, req.searchFilters())
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, result.Mode, time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	result, err := rt.answer.Answer(r.Context(), req.Query, req.TopK, req.searchFilters())
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAnswer(serviceName, result.SearchMode, len(result.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
