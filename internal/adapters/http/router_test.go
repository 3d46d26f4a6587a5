package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

type fakeIngestor struct {
	doc *domain.Document
	err error
}

func (f *fakeIngestor) Upload(_ context.Context, filename string, _ io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.Filename = filename
	return &doc, nil
}

type fakeReader struct {
	doc    *domain.Document
	chunks []domain.Chunk
	err    error
}

func (f *fakeReader) GetByID(_ context.Context, _ string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *fakeReader) ListChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type fakeIndexer struct {
	stats *domain.IndexStats
	err   error
	calls []string
}

func (f *fakeIndexer) IndexByID(_ context.Context, documentID string) (*domain.IndexStats, error) {
	f.calls = append(f.calls, documentID)
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

type fakeSearcher struct {
	result *domain.SearchResult
	err    error
}

func (f *fakeSearcher) Search(_ context.Context, query string, topK int, _ domain.SearchFilters) (*domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	out.Query = query
	out.TopK = topK
	return &out, nil
}

type fakeAnswerer struct {
	result *domain.AnswerResult
	err    error
}

func (f *fakeAnswerer) Answer(_ context.Context, query string, _ int, _ domain.SearchFilters) (*domain.AnswerResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	out.Query = query
	return &out, nil
}

type routerFixtures struct {
	ingestor *fakeIngestor
	reader   *fakeReader
	indexer  *fakeIndexer
	searcher *fakeSearcher
	answerer *fakeAnswerer
}

func newTestRouter(fx routerFixtures, options RouterOptions) http.Handler {
	if fx.ingestor == nil {
		fx.ingestor = &fakeIngestor{doc: &domain.Document{ID: "doc-1", Status: domain.StatusUploaded}}
	}
	if fx.reader == nil {
		fx.reader = &fakeReader{doc: &domain.Document{ID: "doc-1", Status: domain.StatusIndexed}}
	}
	if fx.indexer == nil {
		fx.indexer = &fakeIndexer{stats: &domain.IndexStats{DocID: "doc-1", Status: "indexed"}}
	}
	if fx.searcher == nil {
		fx.searcher = &fakeSearcher{result: &domain.SearchResult{Mode: domain.ModeHybrid, Results: []domain.GroupedResult{}}}
	}
	if fx.answerer == nil {
		fx.answerer = &fakeAnswerer{result: &domain.AnswerResult{Answer: "ok", Sources: []domain.AnswerSource{}}}
	}
	return NewRouter(fx.ingestor, fx.reader, fx.indexer, fx.searcher, fx.answerer, nil, options).Handler()
}

func multipartUpload(t *testing.T, fieldName, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestUploadDocumentAccepted(t *testing.T) {
	handler := newTestRouter(routerFixtures{}, RouterOptions{})

	body, contentType := multipartUpload(t, "file", "tdr.pdf", "%PDF")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var doc domain.Document
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.ID != "doc-1" || doc.Filename != "tdr.pdf" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	handler := newTestRouter(routerFixtures{}, RouterOptions{})

	body, contentType := multipartUpload(t, "document", "tdr.pdf", "%PDF")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentNotFoundMapsTo404(t *testing.T) {
	handler := newTestRouter(routerFixtures{
		reader: &fakeReader{err: domain.WrapError(domain.ErrDocumentNotFound, "repo", errors.New("missing"))},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListDocumentChunks(t *testing.T) {
	handler := newTestRouter(routerFixtures{
		reader: &fakeReader{
			doc: &domain.Document{ID: "doc-1"},
			chunks: []domain.Chunk{
				{DocID: "doc-1", Section: "mission", ChunkIndex: 0, Text: "Mission."},
				{DocID: "doc-1", Section: "mission", ChunkIndex: 1, Text: "Suite."},
			},
		},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/chunks", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		DocID  string         `json:"doc_id"`
		Count  int            `json:"count"`
		Chunks []domain.Chunk `json:"chunks"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 2 || len(payload.Chunks) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestReindexDocument(t *testing.T) {
	indexer := &fakeIndexer{stats: &domain.IndexStats{DocID: "doc-1", Status: "indexed", ChunkCount: 7}}
	handler := newTestRouter(routerFixtures{indexer: indexer}, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/index/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(indexer.calls) != 1 || indexer.calls[0] != "doc-1" {
		t.Fatalf("unexpected indexer calls: %v", indexer.calls)
	}

	get := httptest.NewRequest(http.MethodGet, "/v1/index/doc-1", nil)
	getRes := httptest.NewRecorder()
	handler.ServeHTTP(getRes, get)
	if getRes.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", getRes.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	handler := newTestRouter(routerFixtures{
		searcher: &fakeSearcher{result: &domain.SearchResult{
			Mode: domain.ModeHybrid,
			Results: []domain.GroupedResult{
				{DocID: "doc-1", Score: 0.9},
			},
		}},
	}, RouterOptions{})

	payload := `{"query":"audit financier","top_k":3,"filters":{"doc_type":"tdr","pays":"tunisie"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var result domain.SearchResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Mode != domain.ModeHybrid || result.Query != "audit financier" || result.TopK != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	handler := newTestRouter(routerFixtures{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAnswerEndpointMapsTemporaryTo503(t *testing.T) {
	handler := newTestRouter(routerFixtures{
		answerer: &fakeAnswerer{err: domain.WrapError(domain.ErrTemporary, "answer", errors.New("circuit open"))},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rag", strings.NewReader(`{"query":"durée ?"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestSearchUpstreamFailureMapsTo502(t *testing.T) {
	handler := newTestRouter(routerFixtures{
		searcher: &fakeSearcher{err: domain.WrapError(domain.ErrUpstream, "qdrant", errors.New("boom"))},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"audit"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(routerFixtures{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	handler := newTestRouter(routerFixtures{}, RouterOptions{
		ReadinessChecks: map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
			"qdrant":   func(context.Context) error { return errors.New("connection refused") },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	var payload struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Checks["postgres"] != "ok" || payload.Checks["qdrant"] == "ok" {
		t.Fatalf("unexpected checks: %v", payload.Checks)
	}
}
