package usecase

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

type fakeRepo struct {
	docs          map[string]*domain.Document
	created       []*domain.Document
	statusUpdates []string
	structSaved   map[string]domain.DocType
	statsSaved    map[string]int
	failErr       error
}

func newFakeRepo(docs ...*domain.Document) *fakeRepo {
	r := &fakeRepo{
		docs:        map[string]*domain.Document{},
		structSaved: map[string]domain.DocType{},
		statsSaved:  map[string]int{},
	}
	for _, doc := range docs {
		r.docs[doc.ID] = doc
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, doc *domain.Document) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.created = append(r.created, doc)
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake.GetByID", errors.New(id))
	}
	return doc, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	r.statusUpdates = append(r.statusUpdates, id+":"+string(status)+":"+errMessage)
	return nil
}

func (r *fakeRepo) SaveStructuring(_ context.Context, id string, docType domain.DocType, _ domain.Metadata) error {
	r.structSaved[id] = docType
	return nil
}

func (r *fakeRepo) SaveIndexStats(_ context.Context, id string, chunkCount, _ int, _ string) error {
	r.statsSaved[id] = chunkCount
	return nil
}

func (r *fakeRepo) ListRecent(_ context.Context, limit int) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range r.docs {
		out = append(out, *doc)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeStorage struct {
	objects map[string]string
	saveErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]string{}}
}

func (s *fakeStorage) key(bucket, key string) string { return bucket + "/" + key }

func (s *fakeStorage) Save(_ context.Context, bucket, key string, data io.Reader) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.objects[s.key(bucket, key)] = string(raw)
	return nil
}

func (s *fakeStorage) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	text, ok := s.objects[s.key(bucket, key)]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(strings.NewReader(text)), nil
}

func (s *fakeStorage) GetText(_ context.Context, bucket, key string) (string, error) {
	text, ok := s.objects[s.key(bucket, key)]
	if !ok {
		return "", errors.New("object not found: " + key)
	}
	return text, nil
}

func (s *fakeStorage) PutText(_ context.Context, bucket, key, text, _ string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.objects[s.key(bucket, key)] = text
	return nil
}

func (s *fakeStorage) Exists(_ context.Context, bucket, key string) (bool, error) {
	_, ok := s.objects[s.key(bucket, key)]
	return ok, nil
}

type fakeQueue struct {
	extractPublished []string
	indexPublished   []string
	publishErr       error
}

func (q *fakeQueue) PublishExtractRequested(_ context.Context, documentID string) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.extractPublished = append(q.extractPublished, documentID)
	return nil
}

func (q *fakeQueue) PublishIndexRequested(_ context.Context, documentID string) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.indexPublished = append(q.indexPublished, documentID)
	return nil
}

func (q *fakeQueue) SubscribeExtractRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (q *fakeQueue) SubscribeIndexRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

type fakeExtractor struct {
	extraction domain.Extraction
	err        error
}

func (e *fakeExtractor) Extract(context.Context, *domain.Document) (domain.Extraction, error) {
	return e.extraction, e.err
}

type fakeClassifier struct {
	docType domain.DocType
}

func (c *fakeClassifier) Classify(string) domain.DocType { return c.docType }

type fakeStructurer struct {
	structured domain.StructuredDocument
}

func (s *fakeStructurer) Structure(_, _ string, docType domain.DocType) domain.StructuredDocument {
	out := s.structured
	out.DocType = docType
	return out
}

type fakeChunker struct {
	chunks []domain.Chunk
	err    error
}

func (c *fakeChunker) Build(domain.StructuredDocument) ([]domain.Chunk, error) {
	return c.chunks, c.err
}

type fakeEmbedder struct {
	dim      int
	queryErr error
	embedErr error
	oddDimAt int
	calls    int
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.embedErr != nil {
		return nil, e.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		e.calls++
		dim := e.dim
		if e.oddDimAt > 0 && e.calls == e.oddDimAt {
			dim++
		}
		out[i] = make([]float32, dim)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return make([]float32, e.dim), nil
}

type fakeVectorStore struct {
	ensured   []int
	upserted  []domain.VectorPoint
	deleted   []string
	queryHits []domain.SearchHit
	queryErr  error
	retrieved map[string]domain.Chunk
	scrolled  []domain.Chunk
	deleteErr error
	upsertErr error
}

func (v *fakeVectorStore) EnsureCollection(_ context.Context, vectorSize int) error {
	v.ensured = append(v.ensured, vectorSize)
	return nil
}

func (v *fakeVectorStore) UpsertChunks(_ context.Context, points []domain.VectorPoint) error {
	if v.upsertErr != nil {
		return v.upsertErr
	}
	v.upserted = append(v.upserted, points...)
	return nil
}

func (v *fakeVectorStore) Query(_ context.Context, _ []float32, _ int, _ domain.SearchFilters) ([]domain.SearchHit, error) {
	if v.queryErr != nil {
		return nil, v.queryErr
	}
	return v.queryHits, nil
}

func (v *fakeVectorStore) Retrieve(_ context.Context, pointIDs []string) (map[string]domain.Chunk, error) {
	out := map[string]domain.Chunk{}
	for _, id := range pointIDs {
		if chunk, ok := v.retrieved[id]; ok {
			out[id] = chunk
		}
	}
	return out, nil
}

func (v *fakeVectorStore) DeleteByDocID(_ context.Context, docID string) error {
	if v.deleteErr != nil {
		return v.deleteErr
	}
	v.deleted = append(v.deleted, docID)
	return nil
}

func (v *fakeVectorStore) ScrollByDocID(_ context.Context, _ string, _ int) ([]domain.Chunk, error) {
	return v.scrolled, nil
}

type fakeGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}
