package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

func TestEnsureCollectionToleratesConflictAndCaches(t *testing.T) {
	var collectionPuts, indexPuts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/test":
			collectionPuts++
			w.WriteHeader(http.StatusConflict)
		case "/collections/test/index":
			indexPuts++
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test")
	if err := c.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if collectionPuts != 1 || indexPuts != 3 {
		t.Fatalf("expected 1 collection put and 3 index puts, got %d/%d", collectionPuts, indexPuts)
	}

	if err := c.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if collectionPuts != 1 {
		t.Fatalf("expected ensure to be cached, got %d puts", collectionPuts)
	}
}

func TestUpsertChunksSendsDeterministicIDsAndPayload(t *testing.T) {
	var captured struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/test/points" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("expected wait=true on upsert")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	docID := "6c5f1f6e-8f4e-5a7b-9c3d-2e1f0a9b8c7d"
	pointID, err := domain.PointID(docID, "mission", 0)
	if err != nil {
		t.Fatalf("point id: %v", err)
	}

	c := New(srv.URL, "test")
	err = c.UpsertChunks(context.Background(), []domain.VectorPoint{{
		ID:     pointID,
		Vector: []float32{0.1, 0.2},
		Chunk: domain.Chunk{
			DocID:      docID,
			DocType:    domain.DocTypeTDR,
			Section:    "mission",
			ChunkIndex: 0,
			Text:       "Accompagner la mise en place du dispositif de suivi.",
		},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(captured.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(captured.Points))
	}
	p := captured.Points[0]
	if p.ID != pointID {
		t.Fatalf("expected point id %q, got %q", pointID, p.ID)
	}
	if p.Payload["section"] != "mission" || p.Payload["doc_id"] != docID {
		t.Fatalf("unexpected payload: %v", p.Payload)
	}
	if p.Payload["chunk_id"] != docID+":mission:0" {
		t.Fatalf("unexpected chunk_id: %v", p.Payload["chunk_id"])
	}
}

func TestQueryBuildsWidenedSectionFilter(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"score": 0.91,
					"payload": map[string]any{
						"doc_id":      "d1",
						"doc_type":    "tdr",
						"section":     "taches",
						"chunk_index": 2,
						"text":        "Assurer le suivi des livrables.",
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test")
	hits, err := c.Query(context.Background(), []float32{0.5}, 10, domain.SearchFilters{
		DocType: "tdr",
		Section: "taches",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rawFilter, _ := json.Marshal(captured["filter"])
	for _, want := range []string{`"taches"`, `"table:taches"`, `"tache:item"`} {
		if !strings.Contains(string(rawFilter), want) {
			t.Fatalf("filter missing section variant %s: %s", want, rawFilter)
		}
	}

	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ChunkIndex == nil || *hits[0].ChunkIndex != 2 {
		t.Fatalf("expected chunk index 2, got %v", hits[0].ChunkIndex)
	}
	if hits[0].ScoreVector != 0.91 {
		t.Fatalf("expected vector score 0.91, got %v", hits[0].ScoreVector)
	}
}

func TestDeleteByDocIDFiltersAndWaits(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/test/points/delete" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("expected wait=true on delete")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "test")
	if err := c.DeleteByDocID(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, _ := json.Marshal(captured)
	if !strings.Contains(string(raw), `"doc_id"`) || !strings.Contains(string(raw), `"d1"`) {
		t.Fatalf("delete filter missing doc_id clause: %s", raw)
	}
}

func TestRetrieveMapsPointsByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"id": "p1",
					"payload": map[string]any{
						"doc_id": "d1", "section": "mission", "chunk_index": 0,
						"text": "Texte du premier chunk.",
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test")
	got, err := c.Retrieve(context.Background(), []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 resolved point, got %d", len(got))
	}
	if got["p1"].Section != "mission" {
		t.Fatalf("unexpected chunk: %+v", got["p1"])
	}
}

func TestQueryUpstreamErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "test")
	_, err := c.Query(context.Background(), []float32{0.5}, 10, domain.SearchFilters{})
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}
