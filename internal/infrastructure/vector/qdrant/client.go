package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

// Client talks to qdrant over its HTTP API. Point identifiers are the
// deterministic v5 UUIDs from domain.PointID, which is what lets the answer
// path re-fetch a known chunk without a similarity search.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Collection() string { return c.collection }

// EnsureCollection creates the collection (409 means someone else won the
// race, which is fine) and the payload indexes used by filtered search.
func (c *Client) EnsureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
		"hnsw_config": map[string]any{
			"m":            16,
			"ef_construct": 128,
		},
		"optimizers_config": map[string]any{
			"indexing_threshold": 20000,
		},
	}
	status, body, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", c.collection), reqBody)
	if err != nil {
		return domain.WrapError(domain.ErrUpstream, "qdrant.EnsureCollection", err)
	}
	if status != http.StatusConflict && status >= 300 {
		return domain.WrapError(domain.ErrUpstream, "qdrant.EnsureCollection", statusError(status, body))
	}

	for _, field := range []string{"doc_id", "doc_type", "section"} {
		idxBody := map[string]any{"field_name": field, "field_schema": "keyword"}
		status, body, err = c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/index", c.collection), idxBody)
		if err != nil {
			return domain.WrapError(domain.ErrUpstream, "qdrant.EnsureCollection", err)
		}
		// 4xx here means the index already exists.
		if status >= 500 {
			return domain.WrapError(domain.ErrUpstream, "qdrant.EnsureCollection", statusError(status, body))
		}
	}

	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) UpsertChunks(ctx context.Context, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	body := make([]point, 0, len(points))
	for _, p := range points {
		body = append(body, point{
			ID:     p.ID,
			Vector: p.Vector,
			Payload: map[string]any{
				"chunk_id":    p.Chunk.ChunkID(),
				"doc_id":      p.Chunk.DocID,
				"doc_type":    string(p.Chunk.DocType),
				"section":     p.Chunk.Section,
				"chunk_index": p.Chunk.ChunkIndex,
				"text":        p.Chunk.Text,
				"competences": p.Chunk.Competences,
				"metadata":    p.Chunk.Metadata,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	status, respBody, err := c.do(ctx, http.MethodPut, path, map[string]any{"points": body})
	if err != nil {
		return domain.WrapError(domain.ErrUpstream, "qdrant.UpsertChunks", err)
	}
	if status >= 300 {
		return domain.WrapError(domain.ErrUpstream, "qdrant.UpsertChunks", statusError(status, respBody))
	}
	return nil
}

func (c *Client) Query(ctx context.Context, queryVector []float32, limit int, filters domain.SearchFilters) ([]domain.SearchHit, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filters); f != nil {
		reqBody["filter"] = f
	}

	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	status, body, err := c.do(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.Query", err)
	}
	if status >= 300 {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.Query", statusError(status, body))
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.Query", fmt.Errorf("decode response: %w", err))
	}

	out := make([]domain.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := chunkFromPayload(r.Payload)
		idx := chunk.ChunkIndex
		out = append(out, domain.SearchHit{
			DocID:       chunk.DocID,
			DocType:     chunk.DocType,
			Section:     chunk.Section,
			ChunkIndex:  &idx,
			Text:        chunk.Text,
			Metadata:    chunk.Metadata,
			ScoreVector: r.Score,
		})
	}
	return out, nil
}

// Retrieve fetches points by id. Missing ids are simply absent from the map.
func (c *Client) Retrieve(ctx context.Context, pointIDs []string) (map[string]domain.Chunk, error) {
	if len(pointIDs) == 0 {
		return map[string]domain.Chunk{}, nil
	}
	reqBody := map[string]any{"ids": pointIDs, "with_payload": true}

	path := fmt.Sprintf("/collections/%s/points", c.collection)
	status, body, err := c.do(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.Retrieve", err)
	}
	if status >= 300 {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.Retrieve", statusError(status, body))
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.Retrieve", fmt.Errorf("decode response: %w", err))
	}

	out := make(map[string]domain.Chunk, len(resp.Result))
	for _, r := range resp.Result {
		out[fmt.Sprintf("%v", r.ID)] = chunkFromPayload(r.Payload)
	}
	return out, nil
}

func (c *Client) DeleteByDocID(ctx context.Context, docID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{matchClause("doc_id", docID)},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	status, body, err := c.do(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return domain.WrapError(domain.ErrUpstream, "qdrant.DeleteByDocID", err)
	}
	if status >= 300 {
		return domain.WrapError(domain.ErrUpstream, "qdrant.DeleteByDocID", statusError(status, body))
	}
	return nil
}

func (c *Client) ScrollByDocID(ctx context.Context, docID string, limit int) ([]domain.Chunk, error) {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{matchClause("doc_id", docID)},
		},
		"limit":        limit,
		"with_payload": true,
	}
	path := fmt.Sprintf("/collections/%s/points/scroll", c.collection)
	status, body, err := c.do(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.ScrollByDocID", err)
	}
	if status >= 300 {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.ScrollByDocID", statusError(status, body))
	}

	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "qdrant.ScrollByDocID", fmt.Errorf("decode response: %w", err))
	}

	out := make([]domain.Chunk, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		out = append(out, chunkFromPayload(p.Payload))
	}
	return out, nil
}

// buildFilter maps structured filters to qdrant match clauses. A section
// filter is widened to its table namespace, and for the task section to the
// per-item micro-chunks, so filtered search still sees derived chunks.
func buildFilter(f domain.SearchFilters) map[string]any {
	var must []map[string]any
	if f.DocType != "" {
		must = append(must, matchClause("doc_type", f.DocType))
	}
	if f.Section != "" {
		variants := []string{f.Section, "table:" + f.Section}
		if f.Section == domain.SectionTaches {
			variants = append(variants, "tache:item")
		}
		must = append(must, map[string]any{
			"key":   "section",
			"match": map[string]any{"any": variants},
		})
	}
	for key, value := range map[string]string{
		"metadata.pays":     f.Pays,
		"metadata.bailleur": f.Bailleur,
		"metadata.domaine":  f.Domaine,
		"metadata.region":   f.Region,
		"metadata.langue":   f.Language,
	} {
		if value != "" {
			must = append(must, matchClause(key, value))
		}
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchClause(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	chunk := domain.Chunk{
		DocID:      payloadString(payload, "doc_id"),
		DocType:    domain.DocType(payloadString(payload, "doc_type")),
		Section:    payloadString(payload, "section"),
		ChunkIndex: payloadInt(payload, "chunk_index"),
		Text:       payloadString(payload, "text"),
	}
	if raw, ok := payload["metadata"]; ok {
		if b, err := json.Marshal(raw); err == nil {
			_ = json.Unmarshal(b, &chunk.Metadata)
		}
	}
	if raw, ok := payload["competences"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				chunk.Competences = append(chunk.Competences, s)
			}
		}
	}
	return chunk
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	if f, ok := payload[key].(float64); ok {
		return int(f)
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, respBody, nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func statusError(status int, body []byte) error {
	if msg := strings.TrimSpace(string(body)); msg != "" {
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return fmt.Errorf("status %d: %s", status, msg)
	}
	return fmt.Errorf("status %d", status)
}
