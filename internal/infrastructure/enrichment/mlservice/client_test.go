package mlservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/transithub/metrodms/internal/infrastructure/resilience"
)

func noBreakerExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
		BreakerEnabled:      false,
	})
}

func TestClassifyUsesServiceResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Filename != "tender.pdf" {
			t.Fatalf("unexpected filename %s", req.Filename)
		}
		json.NewEncoder(w).Encode(classifyResponse{
			Success:      true,
			DocumentType: "finance&procurement",
			Confidence:   0.97,
			Keywords:     []string{"tender", "procurement"},
		})
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Executor: noBreakerExecutor()})
	enr, err := client.Classify(context.Background(), "tender for escalator spares", "tender.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if enr.Classification != "finance&procurement" || enr.ClassificationConfidence != 0.97 {
		t.Fatalf("unexpected enrichment: %+v", enr)
	}
}

func TestClassifyFallsBackWhenServiceUnreachable(t *testing.T) {
	fallbacks := 0
	client := New(Options{
		BaseURL:    "http://127.0.0.1:1", // nothing listens here
		Timeout:    200 * time.Millisecond,
		Executor:   noBreakerExecutor(),
		OnFallback: func(string) { fallbacks++ },
	})

	enr, err := client.Classify(context.Background(), "", "safety_notice.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Classify() must absorb transport errors, got %v", err)
	}
	if enr.Classification != "safety&training" {
		t.Fatalf("expected heuristic label, got %s", enr.Classification)
	}
	if enr.ClassificationConfidence != 0.90 {
		t.Fatalf("expected heuristic confidence 0.90, got %v", enr.ClassificationConfidence)
	}
	if fallbacks != 1 {
		t.Fatalf("expected 1 fallback observation, got %d", fallbacks)
	}
}

func TestClassifyFallsBackOnSuccessFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{Success: false})
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Executor: noBreakerExecutor()})
	enr, err := client.Classify(context.Background(), "invoice for spare parts", "inv-81.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if enr.Classification != "finance&procurement" {
		t.Fatalf("expected heuristic label, got %s", enr.Classification)
	}
}

func TestSummarizeSendsDocumentTypeAndCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req summarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.DocumentType != "maintenance&operation" {
			t.Fatalf("unexpected document type %s", req.DocumentType)
		}
		if req.MaxSummaryLength != 500 {
			t.Fatalf("unexpected cap %d", req.MaxSummaryLength)
		}
		json.NewEncoder(w).Encode(summarizeResponse{
			Success:    true,
			Summary:    "Scheduled overhaul of rolling stock.",
			Confidence: 0.91,
		})
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Executor: noBreakerExecutor()})
	enr, err := client.Summarize(context.Background(), "text", "plan.pdf", "maintenance&operation")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if enr.Summary != "Scheduled overhaul of rolling stock." {
		t.Fatalf("unexpected summary %q", enr.Summary)
	}
}

func TestSummarizeFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Executor: noBreakerExecutor()})
	enr, err := client.Summarize(context.Background(), "The depot reported water ingress. Pumps were deployed.", "depot.txt", "general communication")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if enr.Summary == "" {
		t.Fatalf("expected heuristic summary")
	}
	if enr.SummaryConfidence < 0 || enr.SummaryConfidence > 1 {
		t.Fatalf("confidence out of range: %v", enr.SummaryConfidence)
	}
}

func TestConfidenceClamped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{Success: true, DocumentType: "x", Confidence: 3.2})
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Executor: noBreakerExecutor()})
	enr, err := client.Classify(context.Background(), "t", "f.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if enr.ClassificationConfidence != 1 {
		t.Fatalf("expected clamp to 1, got %v", enr.ClassificationConfidence)
	}
}
