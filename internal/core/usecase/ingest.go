package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/transithub/metrodms/internal/core/domain"
	"github.com/transithub/metrodms/internal/core/ports"
	"github.com/transithub/metrodms/internal/infrastructure/storage"
)

// IngestDocumentUseCase receives uploads, persists them, and runs the
// enrichment pipeline. Enrichment failures mark the record failed but
// never fail the upload itself.
type IngestDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	enricher  ports.Enricher
	queue     ports.MessageQueue
	logger    *slog.Logger

	// Observe is invoked after each file lands, with the department and
	// final processing status. Wired to the ingestion counter.
	Observe func(department string, status domain.ProcessingStatus)

	// ObserveEnrichment reports how long one enrichment run took,
	// whatever its outcome. Wired to the duration histogram.
	ObserveEnrichment func(elapsed time.Duration)
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	objectStorage ports.ObjectStorage,
	extractor ports.TextExtractor,
	enricher ports.Enricher,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:      repo,
		storage:   objectStorage,
		extractor: extractor,
		enricher:  enricher,
		queue:     queue,
		logger:    logger,
	}
}

// Upload stores a batch of files for one department. Each file is handled
// independently: a failure is reported in its FileResult and does not
// abort the rest of the batch.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	identity domain.Identity,
	meta ports.UploadMeta,
	files []ports.UploadFile,
) ([]ports.FileResult, error) {
	if err := validateUploadMeta(&meta); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("no files in request"))
	}

	results := make([]ports.FileResult, 0, len(files))
	for _, file := range files {
		doc, err := uc.uploadOne(ctx, identity, meta, file)
		result := ports.FileResult{OriginalName: file.OriginalName, Document: doc}
		if err != nil {
			result.Error = err.Error()
			uc.logger.Error("file upload failed",
				"file", file.OriginalName, "department", meta.Department, "error", err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (uc *IngestDocumentUseCase) uploadOne(
	ctx context.Context,
	identity domain.Identity,
	meta ports.UploadMeta,
	file ports.UploadFile,
) (*domain.Document, error) {
	if file.OriginalName == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload file", errors.New("missing filename"))
	}

	now := time.Now().UTC()
	key := storage.BuildKey(meta.Department, file.OriginalName, now)

	hasher := sha256.New()
	written, err := uc.storage.Save(ctx, key, io.TeeReader(file.Body, hasher))
	if err != nil {
		return nil, fmt.Errorf("save file content: %w", err)
	}

	doc := &domain.Document{
		StoredName:   key,
		OriginalName: file.OriginalName,
		SizeBytes:    written,
		MediaType:    file.MediaType,
		StoragePath:  key,
		ContentHash:  hex.EncodeToString(hasher.Sum(nil)),
		Department:   meta.Department,
		UploadedBy:   identity.Subject,
		ProjectID:    meta.ProjectID,
		Urgency:      meta.Urgency,
		Status:       domain.StatusPending,
		CreatedAt:    now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		// The stored object has no record pointing at it; reclaim it.
		if rmErr := uc.storage.Remove(ctx, key); rmErr != nil {
			uc.logger.Warn("orphaned object left in storage", "key", key, "error", rmErr)
		}
		return nil, fmt.Errorf("create document record: %w", err)
	}

	uc.enrich(ctx, doc)
	if uc.Observe != nil {
		uc.Observe(doc.Department, doc.Status)
	}
	return doc, nil
}

// ProcessByID re-runs enrichment for an existing document. Used by the
// reprocess endpoint and the queue-driven worker.
func (uc *IngestDocumentUseCase) ProcessByID(ctx context.Context, id int64) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.enrich(ctx, doc)
	return doc, nil
}

// enrich drives the document through processing -> completed|failed and
// mutates doc to reflect the stored outcome.
func (uc *IngestDocumentUseCase) enrich(ctx context.Context, doc *domain.Document) {
	startedAt := time.Now().UTC()
	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, startedAt); err != nil {
		uc.logger.Error("mark processing failed", "document_id", doc.ID, "error", err)
		return
	}
	doc.Status = domain.StatusProcessing
	doc.ProcessingStartedAt = &startedAt
	if uc.ObserveEnrichment != nil {
		defer func() { uc.ObserveEnrichment(time.Since(startedAt)) }()
	}

	enr, err := uc.runEnrichment(ctx, doc)
	completedAt := time.Now().UTC()
	if err != nil {
		uc.logger.Error("enrichment failed", "document_id", doc.ID, "error", err)
		if updErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, completedAt); updErr != nil {
			uc.logger.Error("mark failed failed", "document_id", doc.ID, "error", updErr)
		}
		doc.Status = domain.StatusFailed
		doc.ProcessingCompletedAt = &completedAt
		return
	}

	if err := uc.repo.SaveEnrichment(ctx, doc.ID, enr, completedAt); err != nil {
		uc.logger.Error("persist enrichment failed", "document_id", doc.ID, "error", err)
		if updErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, completedAt); updErr != nil {
			uc.logger.Error("mark failed failed", "document_id", doc.ID, "error", updErr)
		}
		doc.Status = domain.StatusFailed
		doc.ProcessingCompletedAt = &completedAt
		return
	}

	applyEnrichment(doc, enr)
	doc.Status = domain.StatusCompleted
	doc.ProcessingCompletedAt = &completedAt

	if uc.queue != nil {
		if err := uc.queue.PublishDocumentEnriched(ctx, doc.ID); err != nil {
			uc.logger.Warn("enriched event not published", "document_id", doc.ID, "error", err)
		}
	}
}

func (uc *IngestDocumentUseCase) runEnrichment(ctx context.Context, doc *domain.Document) (domain.Enrichment, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		// Corrupt or unreadable files still get filename-based enrichment.
		uc.logger.Warn("text extraction failed, enriching from filename",
			"document_id", doc.ID, "file", doc.OriginalName, "error", err)
		text = ""
	}

	classified, err := uc.enricher.Classify(ctx, text, doc.OriginalName, doc.MediaType)
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("classify: %w", err)
	}

	summarized, err := uc.enricher.Summarize(ctx, text, doc.OriginalName, classified.Classification)
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("summarize: %w", err)
	}

	return mergeEnrichment(classified, summarized), nil
}

func mergeEnrichment(classified, summarized domain.Enrichment) domain.Enrichment {
	merged := classified
	merged.Summary = summarized.Summary
	merged.SummaryConfidence = summarized.SummaryConfidence
	merged.Keywords = unionKeywords(classified.Keywords, summarized.Keywords)
	if merged.Language == "" {
		merged.Language = summarized.Language
	}
	return merged
}

func unionKeywords(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, kw := range append(append([]string{}, a...), b...) {
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func applyEnrichment(doc *domain.Document, enr domain.Enrichment) {
	doc.Classification = enr.Classification
	doc.ClassificationConfidence = enr.ClassificationConfidence
	doc.Summary = enr.Summary
	doc.SummaryConfidence = enr.SummaryConfidence
	doc.Keywords = enr.Keywords
	doc.Entities = enr.Entities
	doc.Language = enr.Language
}

func validateUploadMeta(meta *ports.UploadMeta) error {
	if !domain.ValidDepartment(meta.Department) {
		return domain.WrapError(domain.ErrInvalidInput, "upload",
			fmt.Errorf("unknown department %q", meta.Department))
	}
	if meta.Urgency == "" {
		meta.Urgency = domain.UrgencyRoutine
	}
	if !domain.ValidUrgency(meta.Urgency) {
		return domain.WrapError(domain.ErrInvalidInput, "upload",
			fmt.Errorf("unknown urgency %q", meta.Urgency))
	}
	return nil
}
