// Package postgres is the relational Document Record Store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/transithub/metrodms/internal/core/domain"
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
		return storeErr("begin schema tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return storeErr("acquire schema lock", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	stored_name TEXT NOT NULL,
	original_name TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	media_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	content_hash TEXT,
	department TEXT NOT NULL,
	uploaded_by TEXT NOT NULL,
	project_id TEXT,
	urgency_level TEXT NOT NULL DEFAULT 'routine',
	processing_status TEXT NOT NULL DEFAULT 'pending',
	ai_classification TEXT,
	classification_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	ai_summary TEXT,
	summary_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	ai_keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	extracted_entities JSONB NOT NULL DEFAULT '{}'::jsonb,
	language TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	processing_started_at TIMESTAMPTZ,
	processing_completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_dept_status ON documents(department, processing_status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_summary_fts ON documents USING GIN (to_tsvector('english', coalesce(ai_summary, '')));
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return storeErr("execute schema ddl", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit schema tx", err)
	}
	return nil
}

const documentColumns = `
id, stored_name, original_name, size_bytes, media_type, storage_path,
COALESCE(content_hash, ''), department, uploaded_by, COALESCE(project_id, ''),
urgency_level, processing_status, COALESCE(ai_classification, ''),
classification_confidence, COALESCE(ai_summary, ''), summary_confidence,
ai_keywords, extracted_entities, COALESCE(language, ''), created_at,
processing_started_at, processing_completed_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	keywordsJSON, entitiesJSON, err := marshalEnrichmentFields(doc.Keywords, doc.Entities)
	if err != nil {
		return err
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO documents (
	stored_name, original_name, size_bytes, media_type, storage_path, content_hash,
	department, uploaded_by, project_id, urgency_level, processing_status,
	ai_classification, classification_confidence, ai_summary, summary_confidence,
	ai_keywords, extracted_entities, language, created_at
) VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,NULLIF($9,''),$10,$11,NULLIF($12,''),$13,NULLIF($14,''),$15,$16,$17,NULLIF($18,''),$19)
RETURNING id
`,
		doc.StoredName, doc.OriginalName, doc.SizeBytes, doc.MediaType, doc.StoragePath, doc.ContentHash,
		doc.Department, doc.UploadedBy, doc.ProjectID, string(doc.Urgency), string(doc.Status),
		doc.Classification, doc.ClassificationConfidence, doc.Summary, doc.SummaryConfidence,
		keywordsJSON, entitiesJSON, doc.Language, doc.CreatedAt,
	)
	if err := row.Scan(&doc.ID); err != nil {
		return storeErr("insert document", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %d", id))
		}
		return nil, storeErr("scan document", err)
	}
	return doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id int64, status domain.ProcessingStatus, at time.Time) error {
	var res sql.Result
	var err error

	switch status {
	case domain.StatusProcessing:
		res, err = r.db.ExecContext(ctx, `
UPDATE documents
SET processing_status = $2, processing_started_at = $3, processing_completed_at = NULL
WHERE id = $1
`, id, string(status), at)
	case domain.StatusCompleted, domain.StatusFailed:
		res, err = r.db.ExecContext(ctx, `
UPDATE documents
SET processing_status = $2, processing_completed_at = $3
WHERE id = $1
`, id, string(status), at)
	default:
		res, err = r.db.ExecContext(ctx, `
UPDATE documents
SET processing_status = $2
WHERE id = $1
`, id, string(status))
	}
	if err != nil {
		return storeErr("update document status", err)
	}
	return requireRow(res, "update document status", id)
}

func (r *DocumentRepository) SaveEnrichment(ctx context.Context, id int64, enr domain.Enrichment, completedAt time.Time) error {
	keywordsJSON, entitiesJSON, err := marshalEnrichmentFields(enr.Keywords, enr.Entities)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET ai_classification = NULLIF($2, ''),
	classification_confidence = $3,
	ai_summary = NULLIF($4, ''),
	summary_confidence = $5,
	ai_keywords = $6,
	extracted_entities = $7,
	language = NULLIF($8, ''),
	processing_status = $9,
	processing_completed_at = $10
WHERE id = $1
`, id, enr.Classification, enr.ClassificationConfidence, enr.Summary, enr.SummaryConfidence,
		keywordsJSON, entitiesJSON, enr.Language, string(domain.StatusCompleted), completedAt)
	if err != nil {
		return storeErr("save enrichment", err)
	}
	return requireRow(res, "save enrichment", id)
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete document", err)
	}
	return requireRow(res, "delete document", id)
}

func (r *DocumentRepository) List(ctx context.Context, filter domain.ListFilter, page domain.Page) ([]domain.Document, int, error) {
	page = page.Normalize()
	where, args := buildFilter(filter, nil)

	var total int
	countQuery := `SELECT COUNT(*) FROM documents` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count documents", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		documentColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.Size, page.Offset())

	docs, err := r.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepository) SearchKeyword(ctx context.Context, query string, filter domain.ListFilter, page domain.Page) ([]domain.Document, int, error) {
	page = page.Normalize()

	match := fmt.Sprintf(`(to_tsvector('english', coalesce(ai_summary, '')) @@ plainto_tsquery('english', $%d)
	OR original_name ILIKE $%d
	OR coalesce(ai_summary, '') ILIKE $%d
	OR ai_keywords::text ILIKE $%d)`, 1, 2, 2, 2)
	args := []any{query, "%" + query + "%"}

	where, args := buildFilter(filter, args)
	where = joinWhere(match, where)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count search", err)
	}

	sqlQuery := fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		documentColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.Size, page.Offset())

	docs, err := r.queryDocuments(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query documents", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, storeErr("scan document row", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate document rows", err)
	}
	return docs, nil
}

// buildFilter appends WHERE clauses for the set filter fields, continuing
// the placeholder numbering from any already-bound args.
func buildFilter(filter domain.ListFilter, args []any) (string, []any) {
	var clauses []string
	next := len(args) + 1

	add := func(clause string, value any) {
		clauses = append(clauses, fmt.Sprintf(clause, next))
		args = append(args, value)
		next++
	}

	if filter.Department != "" {
		add("department = $%d", filter.Department)
	}
	if filter.ProjectID != "" {
		add("project_id = $%d", filter.ProjectID)
	}
	if filter.Urgency != "" {
		add("urgency_level = $%d", string(filter.Urgency))
	}
	if filter.Status != "" {
		add("processing_status = $%d", string(filter.Status))
	}
	if filter.DocumentType != "" {
		add("ai_classification = $%d", filter.DocumentType)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func joinWhere(match, where string) string {
	if where == "" {
		return " WHERE " + match
	}
	return strings.Replace(where, " WHERE ", " WHERE "+match+" AND ", 1)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var urgency, status string
	var keywordsRaw, entitiesRaw []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.StoredName, &doc.OriginalName, &doc.SizeBytes, &doc.MediaType, &doc.StoragePath,
		&doc.ContentHash, &doc.Department, &doc.UploadedBy, &doc.ProjectID,
		&urgency, &status, &doc.Classification,
		&doc.ClassificationConfidence, &doc.Summary, &doc.SummaryConfidence,
		&keywordsRaw, &entitiesRaw, &doc.Language, &doc.CreatedAt,
		&startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(keywordsRaw, &doc.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal(entitiesRaw, &doc.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	doc.Urgency = domain.UrgencyLevel(urgency)
	doc.Status = domain.ProcessingStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		doc.ProcessingStartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		doc.ProcessingCompletedAt = &t
	}
	return &doc, nil
}

func marshalEnrichmentFields(keywords []string, entities domain.Entities) ([]byte, []byte, error) {
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal keywords: %w", err)
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal entities: %w", err)
	}
	return keywordsJSON, entitiesJSON, nil
}

func requireRow(res sql.Result, operation string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %d", id))
	}
	return nil
}

func storeErr(operation string, err error) error {
	return domain.WrapError(domain.ErrStoreUnavailable, operation, err)
}
