// Package mlservice is the boundary to the external classification and
// summarization service. Transport failures, timeouts and success=false
// responses are absorbed here: the caller always gets a usable enrichment,
// produced by deterministic local heuristics when the service cannot.
package mlservice

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/transithub/metrodms/internal/core/domain"
	"github.com/transithub/metrodms/internal/infrastructure/resilience"
)

type Client struct {
	baseURL          string
	httpClient       *http.Client
	executor         *resilience.Executor
	fallback         *Heuristics
	maxSummaryLength int
	onFallback       func(operation string)
}

type Options struct {
	BaseURL          string
	Timeout          time.Duration
	MaxSummaryLength int
	Executor         *resilience.Executor
	// OnFallback is invoked once per call that degraded to the local
	// heuristics; used for the fallback metrics counter.
	OnFallback func(operation string)
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxSummary := opts.MaxSummaryLength
	if maxSummary <= 0 {
		maxSummary = 500
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		httpClient:       &http.Client{Timeout: timeout},
		executor:         executor,
		fallback:         NewHeuristics(maxSummary),
		maxSummaryLength: maxSummary,
		onFallback:       opts.OnFallback,
	}
}

type classifyRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
}

type classifyResponse struct {
	Success        bool            `json:"success"`
	DocumentType   string          `json:"document_type"`
	Category       string          `json:"category"`
	Confidence     float64         `json:"confidence"`
	Keywords       []string        `json:"keywords"`
	Entities       domain.Entities `json:"entities"`
	ProcessingTime float64         `json:"processing_time"`
}

type summarizeRequest struct {
	Text             string `json:"text"`
	Filename         string `json:"filename"`
	DocumentType     string `json:"document_type"`
	MaxSummaryLength int    `json:"max_summary_length"`
}

type summarizeResponse struct {
	Success        bool     `json:"success"`
	Summary        string   `json:"summary"`
	Keywords       []string `json:"keywords"`
	Confidence     float64  `json:"confidence"`
	ProcessingTime float64  `json:"processing_time"`
}

func (c *Client) Classify(ctx context.Context, text, filename, fileType string) (domain.Enrichment, error) {
	var resp classifyResponse
	err := c.executor.Execute(ctx, "ml.classify", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/classify", classifyRequest{
			Text:     text,
			Filename: filename,
			FileType: fileType,
		}, &resp, "classify")
	}, classifyMLError)

	if err == nil && !resp.Success {
		err = &ServiceRefusalError{Operation: "classify"}
	}
	if err != nil {
		c.degrade("classify", filename, err)
		return c.fallback.Classify(text, filename), nil
	}

	label := resp.DocumentType
	if label == "" {
		label = resp.Category
	}
	return domain.Enrichment{
		Classification:           label,
		ClassificationConfidence: clampConfidence(resp.Confidence),
		Keywords:                 resp.Keywords,
		Entities:                 resp.Entities,
		Language:                 c.fallback.DetectLanguage(text),
	}, nil
}

func (c *Client) Summarize(ctx context.Context, text, filename, documentType string) (domain.Enrichment, error) {
	var resp summarizeResponse
	err := c.executor.Execute(ctx, "ml.summarize", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/summarize", summarizeRequest{
			Text:             text,
			Filename:         filename,
			DocumentType:     documentType,
			MaxSummaryLength: c.maxSummaryLength,
		}, &resp, "summarize")
	}, classifyMLError)

	if err == nil && !resp.Success {
		err = &ServiceRefusalError{Operation: "summarize"}
	}
	if err != nil {
		c.degrade("summarize", filename, err)
		return c.fallback.Summarize(text, filename), nil
	}

	return domain.Enrichment{
		Summary:           resp.Summary,
		SummaryConfidence: clampConfidence(resp.Confidence),
		Keywords:          resp.Keywords,
	}, nil
}

func (c *Client) degrade(operation, filename string, err error) {
	slog.Warn("ml_service_fallback",
		"operation", operation,
		"filename", filename,
		"error", err,
	)
	if c.onFallback != nil {
		c.onFallback(operation)
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
