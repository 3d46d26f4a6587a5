package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// PointID derives the vector-store point identifier for one chunk: a v5 UUID
// namespaced by the document's own id over "{doc_id}:{section}:{chunk_index}".
// The answer assembler recomputes the same id to fetch a known chunk without
// a similarity search, so the derivation must never change.
func PointID(docID, section string, chunkIndex int) (string, error) {
	ns, err := uuid.Parse(docID)
	if err != nil {
		return "", fmt.Errorf("parse doc id %q: %w", docID, err)
	}
	name := fmt.Sprintf("%s:%s:%d", docID, section, chunkIndex)
	return uuid.NewSHA1(ns, []byte(name)).String(), nil
}
