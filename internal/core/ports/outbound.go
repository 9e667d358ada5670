package ports

import (
	"context"
	"io"
	"time"

	"github.com/transithub/metrodms/internal/core/domain"
)

// DocumentRepository persists and reads document records.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ProcessingStatus, at time.Time) error
	SaveEnrichment(ctx context.Context, id int64, enr domain.Enrichment, completedAt time.Time) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.ListFilter, page domain.Page) ([]domain.Document, int, error)
	SearchKeyword(ctx context.Context, query string, filter domain.ListFilter, page domain.Page) ([]domain.Document, int, error)
}

// ObjectStorage stores uploaded files under layout-managed keys.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Enricher is the boundary to the external AI service. Implementations never
// surface transport failures: they fall back to local heuristics instead.
type Enricher interface {
	Classify(ctx context.Context, text, filename, fileType string) (domain.Enrichment, error)
	Summarize(ctx context.Context, text, filename, documentType string) (domain.Enrichment, error)
}

// TextExtractor pulls plain text out of a stored document for enrichment.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// MessageQueue publishes enrichment events and consumes reprocess requests.
type MessageQueue interface {
	PublishDocumentEnriched(ctx context.Context, documentID int64) error
	SubscribeReprocess(ctx context.Context, handler func(context.Context, int64) error) error
}
