package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/transithub/metrodms/internal/core/domain"
)

func seed(t *testing.T, repo *DocumentRepository, name, dept, summary string, at time.Time) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		StoredName:   dept + "/" + name,
		OriginalName: name,
		MediaType:    "application/pdf",
		StoragePath:  dept + "/" + name,
		Department:   dept,
		UploadedBy:   "op-1",
		Urgency:      domain.UrgencyRoutine,
		Status:       domain.StatusCompleted,
		Summary:      summary,
		CreatedAt:    at,
	}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return doc
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	repo := NewDocumentRepository()
	now := time.Now()

	a := seed(t, repo, "a.pdf", domain.DeptSafety, "", now)
	b := seed(t, repo, "b.pdf", domain.DeptSafety, "", now)
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", a.ID, b.ID)
	}
}

func TestGetByIDMissingIsNotFound(t *testing.T) {
	repo := NewDocumentRepository()
	if _, err := repo.GetByID(context.Background(), 99); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestUpdateStatusStampsTimes(t *testing.T) {
	repo := NewDocumentRepository()
	doc := seed(t, repo, "a.pdf", domain.DeptSafety, "", time.Now())

	started := time.Now()
	if err := repo.UpdateStatus(context.Background(), doc.ID, domain.StatusProcessing, started); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), doc.ID)
	if got.ProcessingStartedAt == nil || !got.ProcessingStartedAt.Equal(started) {
		t.Fatalf("processing_started_at not stamped: %+v", got)
	}
	if got.ProcessingCompletedAt != nil {
		t.Fatalf("completed_at should be cleared on processing")
	}

	done := time.Now()
	if err := repo.UpdateStatus(context.Background(), doc.ID, domain.StatusCompleted, done); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	got, _ = repo.GetByID(context.Background(), doc.ID)
	if got.ProcessingCompletedAt == nil || !got.ProcessingCompletedAt.Equal(done) {
		t.Fatalf("processing_completed_at not stamped: %+v", got)
	}
}

func TestSaveEnrichmentOverwritesFields(t *testing.T) {
	repo := NewDocumentRepository()
	doc := seed(t, repo, "a.pdf", domain.DeptSafety, "", time.Now())

	enr := domain.Enrichment{
		Classification:           "safety&training",
		ClassificationConfidence: 0.9,
		Summary:                  "Door fault at Aluva.",
		SummaryConfidence:        0.6,
		Keywords:                 []string{"door", "fault"},
		Language:                 "english",
	}
	if err := repo.SaveEnrichment(context.Background(), doc.ID, enr, time.Now()); err != nil {
		t.Fatalf("SaveEnrichment() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), doc.ID)
	if got.Classification != "safety&training" || got.Status != domain.StatusCompleted {
		t.Fatalf("enrichment not applied: %+v", got)
	}
}

func TestListFiltersAndOrdersNewestFirst(t *testing.T) {
	repo := NewDocumentRepository()
	base := time.Now()
	seed(t, repo, "old.pdf", domain.DeptSafety, "", base.Add(-time.Hour))
	newer := seed(t, repo, "new.pdf", domain.DeptSafety, "", base)
	seed(t, repo, "other.pdf", domain.DeptFinance, "", base)

	docs, total, err := repo.List(context.Background(), domain.ListFilter{Department: domain.DeptSafety}, domain.Page{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 || len(docs) != 2 {
		t.Fatalf("expected 2 safety documents, got total=%d len=%d", total, len(docs))
	}
	if docs[0].ID != newer.ID {
		t.Fatalf("expected newest first, got %v", docs[0].OriginalName)
	}
}

func TestSearchKeywordMatchesNameSummaryKeywords(t *testing.T) {
	repo := NewDocumentRepository()
	now := time.Now()
	seed(t, repo, "escalator_audit.pdf", domain.DeptEngineering, "", now)
	seed(t, repo, "memo.pdf", domain.DeptEngineering, "escalator downtime review", now)
	unrelated := seed(t, repo, "canteen.pdf", domain.DeptAdministration, "lunch menu", now)

	docs, total, err := repo.SearchKeyword(context.Background(), "escalator", domain.ListFilter{}, domain.Page{})
	if err != nil {
		t.Fatalf("SearchKeyword() error = %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 hits, got %d", total)
	}
	for _, d := range docs {
		if d.ID == unrelated.ID {
			t.Fatalf("unrelated document matched")
		}
	}
}

func TestPaginationBeyondEndIsEmpty(t *testing.T) {
	repo := NewDocumentRepository()
	seed(t, repo, "a.pdf", domain.DeptSafety, "", time.Now())

	docs, total, err := repo.List(context.Background(), domain.ListFilter{}, domain.Page{Number: 5, Size: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(docs) != 0 {
		t.Fatalf("expected empty page with total 1, got total=%d len=%d", total, len(docs))
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	repo := NewDocumentRepository()
	doc := seed(t, repo, "a.pdf", domain.DeptSafety, "", time.Now())

	if err := repo.Delete(context.Background(), doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(context.Background(), doc.ID); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound on second delete, got %v", err)
	}
}
