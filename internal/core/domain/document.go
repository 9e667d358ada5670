package domain

import "time"

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

type UrgencyLevel string

const (
	UrgencyRoutine  UrgencyLevel = "routine"
	UrgencyPriority UrgencyLevel = "priority"
	UrgencyUrgent   UrgencyLevel = "urgent"
	UrgencyCritical UrgencyLevel = "critical"
)

func ValidUrgency(u UrgencyLevel) bool {
	switch u {
	case UrgencyRoutine, UrgencyPriority, UrgencyUrgent, UrgencyCritical:
		return true
	default:
		return false
	}
}

// Departments form a closed set of operational codes; the pipeline never
// invents new values.
const (
	DeptEngineering    = "ENGINEERING"
	DeptSafety         = "SAFETY"
	DeptFinance        = "FINANCE"
	DeptHR             = "HR"
	DeptLegal          = "LEGAL"
	DeptOperations     = "OPERATIONS"
	DeptProcurement    = "PROCUREMENT"
	DeptAdministration = "ADMINISTRATION"
)

var departments = map[string]struct{}{
	DeptEngineering:    {},
	DeptSafety:         {},
	DeptFinance:        {},
	DeptHR:             {},
	DeptLegal:          {},
	DeptOperations:     {},
	DeptProcurement:    {},
	DeptAdministration: {},
}

func ValidDepartment(code string) bool {
	_, ok := departments[code]
	return ok
}

// Entities holds structured mentions pulled out of a document by the
// enrichment step.
type Entities struct {
	Dates        []string `json:"dates"`
	Amounts      []string `json:"amounts"`
	ProjectCodes []string `json:"project_codes"`
	Departments  []string `json:"departments"`
	Personnel    []string `json:"personnel"`
}

// Document is one uploaded file and its processing state. The ID is assigned
// by the record store at creation and never changes. Status only moves
// forward: pending -> processing -> completed|failed; a manual reprocess may
// re-enter processing but a record never returns to pending.
type Document struct {
	ID                       int64            `json:"id"`
	StoredName               string           `json:"stored_name"`
	OriginalName             string           `json:"original_name"`
	SizeBytes                int64            `json:"size_bytes"`
	MediaType                string           `json:"media_type"`
	StoragePath              string           `json:"storage_path"`
	ContentHash              string           `json:"content_hash,omitempty"`
	Department               string           `json:"department"`
	UploadedBy               string           `json:"uploaded_by"`
	ProjectID                string           `json:"project_id,omitempty"`
	Urgency                  UrgencyLevel     `json:"urgency_level"`
	Status                   ProcessingStatus `json:"processing_status"`
	Classification           string           `json:"ai_classification,omitempty"`
	ClassificationConfidence float64          `json:"classification_confidence,omitempty"`
	Summary                  string           `json:"ai_summary,omitempty"`
	SummaryConfidence        float64          `json:"summary_confidence,omitempty"`
	Keywords                 []string         `json:"ai_keywords,omitempty"`
	Entities                 Entities         `json:"extracted_entities"`
	Language                 string           `json:"language,omitempty"`
	CreatedAt                time.Time        `json:"created_at"`
	ProcessingStartedAt      *time.Time       `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt    *time.Time       `json:"processing_completed_at,omitempty"`
}

// Enrichment is the merged outcome of the classify and summarize calls.
type Enrichment struct {
	Classification           string   `json:"classification"`
	ClassificationConfidence float64  `json:"classification_confidence"`
	Summary                  string   `json:"summary"`
	SummaryConfidence        float64  `json:"summary_confidence"`
	Keywords                 []string `json:"keywords"`
	Entities                 Entities `json:"entities"`
	Language                 string   `json:"language"`
}

// ListFilter narrows listing and search. Zero values mean "no constraint".
type ListFilter struct {
	Department   string
	ProjectID    string
	Urgency      UrgencyLevel
	Status       ProcessingStatus
	DocumentType string
}

// Page is a one-based page window.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Normalize clamps the window to sane bounds.
func (p Page) Normalize() Page {
	out := p
	if out.Number < 1 {
		out.Number = 1
	}
	if out.Size < 1 {
		out.Size = 20
	}
	if out.Size > 100 {
		out.Size = 100
	}
	return out
}

// SearchResult is a scored hit with its match context.
type SearchResult struct {
	Document Document `json:"document"`
	Score    int      `json:"relevance_score"`
	Snippets []string `json:"snippets,omitempty"`
}
