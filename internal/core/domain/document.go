package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusExtracted  DocumentStatus = "extracted"
	StatusStructured DocumentStatus = "structured"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

type DocType string

const (
	DocTypeTDR     DocType = "tdr"
	DocTypeAMI     DocType = "ami"
	DocTypeOther   DocType = "other"
	DocTypeUnknown DocType = "unknown"
)

type Document struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	Status          DocumentStatus `json:"status"`
	DocType         DocType        `json:"doc_type,omitempty"`
	RawBucket       string         `json:"raw_bucket"`
	RawObjectKey    string         `json:"raw_object_key"`
	ProcessedBucket string         `json:"processed_bucket"`
	ProcessedPrefix string         `json:"processed_prefix"`
	Language        string         `json:"language,omitempty"`
	Title           string         `json:"title,omitempty"`
	Bailleur        string         `json:"bailleur,omitempty"`
	Pays            string         `json:"pays,omitempty"`
	Region          string         `json:"region,omitempty"`
	Domaine         string         `json:"domaine,omitempty"`
	ChunkCount      int            `json:"chunk_count,omitempty"`
	VectorSize      int            `json:"vector_size,omitempty"`
	Collection      string         `json:"qdrant_collection,omitempty"`
	IndexedAt       *time.Time     `json:"indexed_at,omitempty"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
