package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/transithub/metrodms/internal/core/domain"
	"github.com/transithub/metrodms/internal/core/ports"
)

// QueryDocumentsUseCase is the read side: listing, lookup, search,
// download, and deletion. Department staff only see their own
// department's records; admins see everything.
type QueryDocumentsUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	logger  *slog.Logger
}

func NewQueryDocumentsUseCase(
	repo ports.DocumentRepository,
	objectStorage ports.ObjectStorage,
	logger *slog.Logger,
) *QueryDocumentsUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryDocumentsUseCase{
		repo:    repo,
		storage: objectStorage,
		logger:  logger,
	}
}

func (uc *QueryDocumentsUseCase) List(
	ctx context.Context,
	identity domain.Identity,
	filter domain.ListFilter,
	page domain.Page,
) ([]domain.Document, int, error) {
	filter, err := scopeFilter(identity, filter)
	if err != nil {
		return nil, 0, err
	}
	return uc.repo.List(ctx, filter, page)
}

func (uc *QueryDocumentsUseCase) GetByID(ctx context.Context, identity domain.Identity, id int64) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(identity, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *QueryDocumentsUseCase) Search(
	ctx context.Context,
	identity domain.Identity,
	query string,
	filter domain.ListFilter,
	page domain.Page,
) (*ports.SearchOutcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("empty query"))
	}

	filter, err := scopeFilter(identity, filter)
	if err != nil {
		return nil, err
	}

	docs, total, err := uc.repo.SearchKeyword(ctx, query, filter, page)
	if err != nil {
		return nil, err
	}

	tokens := queryTokens(query)
	results := make([]domain.SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, domain.SearchResult{
			Document: doc,
			Score:    relevanceScore(doc, tokens),
			Snippets: buildSnippets(doc.Summary, tokens),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return &ports.SearchOutcome{
		Results:     results,
		Total:       total,
		Suggestions: suggestQueries(query),
	}, nil
}

func (uc *QueryDocumentsUseCase) Download(ctx context.Context, identity domain.Identity, id int64) (*ports.DownloadPayload, error) {
	doc, err := uc.GetByID(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	content, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			uc.logger.Error("stored object missing for record",
				"document_id", doc.ID, "key", doc.StoragePath)
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "download",
				fmt.Errorf("object %s missing", doc.StoragePath))
		}
		return nil, fmt.Errorf("open stored object: %w", err)
	}

	return &ports.DownloadPayload{
		Content:      content,
		OriginalName: doc.OriginalName,
		MediaType:    doc.MediaType,
		SizeBytes:    doc.SizeBytes,
	}, nil
}

// Delete removes the stored object first, then the record. Only the
// uploader or an elevated caller may delete; a missing object is logged
// as an anomaly and does not block record deletion.
func (uc *QueryDocumentsUseCase) Delete(ctx context.Context, identity domain.Identity, id int64) error {
	doc, err := uc.GetByID(ctx, identity, id)
	if err != nil {
		return err
	}
	if !identity.Elevated() && doc.UploadedBy != identity.Subject {
		return domain.WrapError(domain.ErrForbidden, "delete document",
			fmt.Errorf("document %d uploaded by %s", doc.ID, doc.UploadedBy))
	}

	if err := uc.storage.Remove(ctx, doc.StoragePath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stored object: %w", err)
		}
		uc.logger.Warn("record pointed at missing object",
			"document_id", doc.ID, "key", doc.StoragePath)
	}

	return uc.repo.Delete(ctx, doc.ID)
}

// scopeFilter pins non-admin callers to their own department. A staff
// request for another department is refused rather than silently narrowed.
func scopeFilter(identity domain.Identity, filter domain.ListFilter) (domain.ListFilter, error) {
	if identity.Elevated() {
		return filter, nil
	}
	if filter.Department != "" && filter.Department != identity.Department {
		return domain.ListFilter{}, domain.WrapError(domain.ErrForbidden, "scope filter",
			fmt.Errorf("department %s not accessible", filter.Department))
	}
	filter.Department = identity.Department
	return filter, nil
}

func authorizeAccess(identity domain.Identity, doc *domain.Document) error {
	if identity.Elevated() || doc.Department == identity.Department {
		return nil
	}
	return domain.WrapError(domain.ErrForbidden, "access document",
		fmt.Errorf("document %d belongs to %s", doc.ID, doc.Department))
}
