package ports

import (
	"context"
	"io"

	"github.com/transithub/metrodms/internal/core/domain"
)

// UploadFile is one file of a multipart upload batch.
type UploadFile struct {
	OriginalName string
	MediaType    string
	SizeBytes    int64
	Body         io.Reader
}

// UploadMeta carries the batch-level fields of an upload request.
type UploadMeta struct {
	Department string
	ProjectID  string
	Urgency    domain.UrgencyLevel
}

// FileResult reports the per-file outcome of a batch upload. A batch is
// never aborted by a single failing file.
type FileResult struct {
	OriginalName string           `json:"original_name"`
	Document     *domain.Document `json:"document,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// DocumentIngestor is the inbound contract for the ingestion pipeline.
type DocumentIngestor interface {
	Upload(ctx context.Context, identity domain.Identity, meta UploadMeta, files []UploadFile) ([]FileResult, error)
	ProcessByID(ctx context.Context, documentID int64) (*domain.Document, error)
}

// DownloadPayload streams a stored file back to the caller.
type DownloadPayload struct {
	Content      io.ReadCloser
	OriginalName string
	MediaType    string
	SizeBytes    int64
}

// SearchOutcome is a ranked result page plus its match context.
type SearchOutcome struct {
	Results     []domain.SearchResult `json:"results"`
	Total       int                   `json:"total"`
	Suggestions []string              `json:"suggestions,omitempty"`
}

// DocumentQueryService is the inbound read-side contract.
type DocumentQueryService interface {
	List(ctx context.Context, identity domain.Identity, filter domain.ListFilter, page domain.Page) ([]domain.Document, int, error)
	GetByID(ctx context.Context, identity domain.Identity, id int64) (*domain.Document, error)
	Search(ctx context.Context, identity domain.Identity, query string, filter domain.ListFilter, page domain.Page) (*SearchOutcome, error)
	Download(ctx context.Context, identity domain.Identity, id int64) (*DownloadPayload, error)
	Delete(ctx context.Context, identity domain.Identity, id int64) error
}
