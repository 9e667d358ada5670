// Package memstore is a process-local Document Record Store used for
// development and tests when no Postgres instance is available.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/transithub/metrodms/internal/core/domain"
)

type DocumentRepository struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[int64]domain.Document
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{docs: make(map[int64]domain.Document)}
}

func (r *DocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	doc.ID = r.nextID
	r.docs[doc.ID] = *doc
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id int64) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, notFound("get document", id)
	}
	copied := doc
	return &copied, nil
}

func (r *DocumentRepository) UpdateStatus(_ context.Context, id int64, status domain.ProcessingStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return notFound("update document status", id)
	}
	doc.Status = status
	switch status {
	case domain.StatusProcessing:
		t := at
		doc.ProcessingStartedAt = &t
		doc.ProcessingCompletedAt = nil
	case domain.StatusCompleted, domain.StatusFailed:
		t := at
		doc.ProcessingCompletedAt = &t
	}
	r.docs[id] = doc
	return nil
}

func (r *DocumentRepository) SaveEnrichment(_ context.Context, id int64, enr domain.Enrichment, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return notFound("save enrichment", id)
	}
	doc.Classification = enr.Classification
	doc.ClassificationConfidence = enr.ClassificationConfidence
	doc.Summary = enr.Summary
	doc.SummaryConfidence = enr.SummaryConfidence
	doc.Keywords = enr.Keywords
	doc.Entities = enr.Entities
	doc.Language = enr.Language
	doc.Status = domain.StatusCompleted
	t := completedAt
	doc.ProcessingCompletedAt = &t
	r.docs[id] = doc
	return nil
}

func (r *DocumentRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return notFound("delete document", id)
	}
	delete(r.docs, id)
	return nil
}

func (r *DocumentRepository) List(_ context.Context, filter domain.ListFilter, page domain.Page) ([]domain.Document, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filtered(filter, "")
	return paginate(matched, page)
}

func (r *DocumentRepository) SearchKeyword(_ context.Context, query string, filter domain.ListFilter, page domain.Page) ([]domain.Document, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filtered(filter, strings.ToLower(query))
	return paginate(matched, page)
}

// filtered returns matching documents newest first. Callers hold the lock.
func (r *DocumentRepository) filtered(filter domain.ListFilter, query string) []domain.Document {
	var out []domain.Document
	for _, doc := range r.docs {
		if !matchesFilter(doc, filter) {
			continue
		}
		if query != "" && !matchesQuery(doc, query) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func matchesFilter(doc domain.Document, filter domain.ListFilter) bool {
	if filter.Department != "" && doc.Department != filter.Department {
		return false
	}
	if filter.ProjectID != "" && doc.ProjectID != filter.ProjectID {
		return false
	}
	if filter.Urgency != "" && doc.Urgency != filter.Urgency {
		return false
	}
	if filter.Status != "" && doc.Status != filter.Status {
		return false
	}
	if filter.DocumentType != "" && doc.Classification != filter.DocumentType {
		return false
	}
	return true
}

func matchesQuery(doc domain.Document, query string) bool {
	if strings.Contains(strings.ToLower(doc.OriginalName), query) {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Summary), query) {
		return true
	}
	for _, kw := range doc.Keywords {
		if strings.Contains(strings.ToLower(kw), query) {
			return true
		}
	}
	return false
}

func paginate(docs []domain.Document, page domain.Page) ([]domain.Document, int, error) {
	page = page.Normalize()
	total := len(docs)

	start := page.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return docs[start:end], total, nil
}

func notFound(operation string, id int64) error {
	return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %d", id))
}
