// Package httpadapter exposes the document service over HTTP.
package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/transithub/metrodms/internal/core/domain"
	"github.com/transithub/metrodms/internal/core/ports"
	"github.com/transithub/metrodms/internal/observability/metrics"
)

const backpressureWait = 100 * time.Millisecond

type Router struct {
	ingest ports.DocumentIngestor
	query  ports.DocumentQueryService
	auth   *Authenticator

	serverMetrics  *metrics.HTTPServerMetrics
	service        string
	uploadMaxBytes int64
	rateLimitRPS   int
	rateLimitBurst int
	maxInFlight    int
}

type RouterOptions struct {
	Metrics        *metrics.HTTPServerMetrics
	Service        string
	UploadMaxBytes int64
	RateLimitRPS   int
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(
	ingest ports.DocumentIngestor,
	query ports.DocumentQueryService,
	auth *Authenticator,
	options RouterOptions,
) *Router {
	if options.Service == "" {
		options.Service = "metrodms-api"
	}
	if options.UploadMaxBytes <= 0 {
		options.UploadMaxBytes = 64 << 20
	}
	return &Router{
		ingest:         ingest,
		query:          query,
		auth:           auth,
		serverMetrics:  options.Metrics,
		service:        options.Service,
		uploadMaxBytes: options.UploadMaxBytes,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("POST /documents/upload", rt.uploadDocuments)
	protected.HandleFunc("GET /documents", rt.listDocuments)
	protected.HandleFunc("GET /documents/search", rt.searchDocuments)
	protected.HandleFunc("GET /documents/{id}", rt.getDocument)
	protected.HandleFunc("GET /documents/{id}/download", rt.downloadDocument)
	protected.HandleFunc("DELETE /documents/{id}", rt.deleteDocument)
	protected.HandleFunc("POST /documents/{id}/process", rt.processDocument)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.serverMetrics != nil {
		mux.Handle("GET /metrics", rt.serverMetrics.Handler())
	}
	mux.Handle("/", rt.auth.Middleware(protected))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.serverMetrics != nil {
		handler = rt.serverMetrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "upload", errMissingToken))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	meta := ports.UploadMeta{
		Department: r.FormValue("department"),
		ProjectID:  r.FormValue("project_id"),
		Urgency:    domain.UrgencyLevel(r.FormValue("urgency_level")),
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload",
			errors.New("multipart field 'files' is required")))
		return
	}

	files, closeFiles, err := openUploadFiles(headers)
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload", err))
		return
	}
	defer closeFiles()

	results, err := rt.ingest.Upload(r.Context(), identity, meta, files)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeData(w, r, http.StatusCreated, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func openUploadFiles(headers []*multipart.FileHeader) ([]ports.UploadFile, func(), error) {
	files := make([]ports.UploadFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open uploaded file %s: %w", header.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, ports.UploadFile{
			OriginalName: header.Filename,
			MediaType:    header.Header.Get("Content-Type"),
			SizeBytes:    header.Size,
			Body:         f,
		})
	}
	return files, closeAll, nil
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "list", errMissingToken))
		return
	}

	filter := filterFromQuery(r)
	page := pageFromQuery(r)

	docs, total, err := rt.query.List(r.Context(), identity, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}

	writeData(w, r, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"page":      page.Normalize().Number,
		"limit":     page.Normalize().Size,
	})
}

func (rt *Router) searchDocuments(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "search", errMissingToken))
		return
	}

	query := r.URL.Query().Get("q")
	filter := filterFromQuery(r)
	page := pageFromQuery(r)

	outcome, err := rt.query.Search(r.Context(), identity, query, filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.serverMetrics != nil {
		rt.serverMetrics.RecordSearch(rt.service, len(outcome.Results))
	}

	writeData(w, r, http.StatusOK, map[string]any{
		"results":     outcome.Results,
		"total":       outcome.Total,
		"suggestions": outcome.Suggestions,
	})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	identity, id, err := rt.identityAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := rt.query.GetByID(r.Context(), identity, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, doc)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	identity, id, err := rt.identityAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := rt.query.Download(r.Context(), identity, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer payload.Content.Close()

	w.Header().Set("Content-Type", payload.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", payload.OriginalName))
	if payload.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(payload.SizeBytes, 10))
	}
	_, _ = io.Copy(w, payload.Content)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	identity, id, err := rt.identityAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := rt.query.Delete(r.Context(), identity, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	identity, id, err := rt.identityAndID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Authorization reuses the read path before reprocessing mutates state.
	if _, err := rt.query.GetByID(r.Context(), identity, id); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := rt.ingest.ProcessByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, doc)
}

func (rt *Router) identityAndID(r *http.Request) (domain.Identity, int64, error) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		return domain.Identity{}, 0, domain.WrapError(domain.ErrUnauthorized, "identify", errMissingToken)
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return domain.Identity{}, 0, domain.WrapError(domain.ErrInvalidInput, "parse id",
			fmt.Errorf("invalid document id %q", r.PathValue("id")))
	}
	return identity, id, nil
}

func filterFromQuery(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	return domain.ListFilter{
		Department:   q.Get("department"),
		ProjectID:    q.Get("project_id"),
		Urgency:      domain.UrgencyLevel(q.Get("urgency_level")),
		Status:       domain.ProcessingStatus(q.Get("status")),
		DocumentType: q.Get("document_type"),
	}
}

func pageFromQuery(r *http.Request) domain.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("limit"))
	return domain.Page{Number: number, Size: size}
}
