package domain

import "fmt"

// Chunk is the unit of embedding and retrieval. ChunkIndex is contiguous and
// 0-based per (DocID, Section), which makes section-local neighbor addressing
// stable across re-indexing runs.
type Chunk struct {
	DocID       string   `json:"doc_id"`
	DocType     DocType  `json:"doc_type"`
	Section     string   `json:"section"`
	ChunkIndex  int      `json:"chunk_index"`
	Text        string   `json:"text"`
	Metadata    Metadata `json:"metadata"`
	Competences []string `json:"competences"`
}

func (c Chunk) ChunkID() string {
	return fmt.Sprintf("%s:%s:%d", c.DocID, c.Section, c.ChunkIndex)
}

// VectorPoint is one vector-store upsert unit.
type VectorPoint struct {
	ID     string
	Vector []float32
	Chunk  Chunk
}

