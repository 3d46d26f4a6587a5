package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ayoubray/tdrassist/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	status TEXT NOT NULL,
	doc_type TEXT NOT NULL DEFAULT 'unknown',
	raw_bucket TEXT NOT NULL,
	raw_object_key TEXT NOT NULL,
	processed_bucket TEXT NOT NULL DEFAULT '',
	processed_prefix TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	bailleur TEXT NOT NULL DEFAULT '',
	pays TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL DEFAULT '',
	domaine TEXT NOT NULL DEFAULT '',
	chunk_count INTEGER NOT NULL DEFAULT 0,
	vector_size INTEGER NOT NULL DEFAULT 0,
	qdrant_collection TEXT NOT NULL DEFAULT '',
	indexed_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, status, doc_type, raw_bucket, raw_object_key, processed_bucket, processed_prefix, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.Filename, string(doc.Status), string(doc.DocType),
		doc.RawBucket, doc.RawObjectKey, doc.ProcessedBucket, doc.ProcessedPrefix,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, filename, status, doc_type, raw_bucket, raw_object_key, processed_bucket, processed_prefix,
	language, title, bailleur, pays, region, domaine, chunk_count, vector_size, qdrant_collection, indexed_at,
	error_message, created_at, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "postgres.GetByID", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRowUpdated(res, "postgres.UpdateStatus", id)
}

func (r *DocumentRepository) SaveStructuring(ctx context.Context, id string, docType domain.DocType, meta domain.Metadata) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET doc_type = $2, language = $3, bailleur = $4, pays = $5, region = $6, domaine = $7,
    status = $8, updated_at = $9
WHERE id = $1
`, id, string(docType), meta.Language, meta.Bailleur, meta.Pays, meta.Region, meta.Domaine,
		string(domain.StatusStructured), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save structuring: %w", err)
	}
	return requireRowUpdated(res, "postgres.SaveStructuring", id)
}

func (r *DocumentRepository) SaveIndexStats(ctx context.Context, id string, chunkCount, vectorSize int, collection string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, chunk_count = $3, vector_size = $4, qdrant_collection = $5, indexed_at = $6, error_message = '', updated_at = $7
WHERE id = $1
`, id, string(domain.StatusIndexed), chunkCount, vectorSize, collection, now, now)
	if err != nil {
		return fmt.Errorf("save index stats: %w", err)
	}
	return requireRowUpdated(res, "postgres.SaveIndexStats", id)
}

func requireRowUpdated(res sql.Result, operation, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *DocumentRepository) ListRecent(ctx context.Context, limit int) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
ORDER BY updated_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status, docType string
	var indexedAt sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.Filename, &status, &docType, &doc.RawBucket, &doc.RawObjectKey,
		&doc.ProcessedBucket, &doc.ProcessedPrefix,
		&doc.Language, &doc.Title, &doc.Bailleur, &doc.Pays, &doc.Region, &doc.Domaine,
		&doc.ChunkCount, &doc.VectorSize, &doc.Collection, &indexedAt,
		&doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	doc.DocType = domain.DocType(docType)
	if indexedAt.Valid {
		t := indexedAt.Time
		doc.IndexedAt = &t
	}
	return &doc, nil
}
