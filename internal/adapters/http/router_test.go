package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/transithub/metrodms/internal/core/domain"
	"github.com/transithub/metrodms/internal/core/ports"
)

const testSecret = "test-secret"

type ingestorFake struct {
	uploads   int
	processed []int64
}

func (f *ingestorFake) Upload(_ context.Context, identity domain.Identity, meta ports.UploadMeta, files []ports.UploadFile) ([]ports.FileResult, error) {
	if !domain.ValidDepartment(meta.Department) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("unknown department"))
	}
	f.uploads++
	results := make([]ports.FileResult, 0, len(files))
	for i, file := range files {
		results = append(results, ports.FileResult{
			OriginalName: file.OriginalName,
			Document: &domain.Document{
				ID:           int64(i + 1),
				OriginalName: file.OriginalName,
				Department:   meta.Department,
				UploadedBy:   identity.Subject,
				Status:       domain.StatusCompleted,
			},
		})
	}
	return results, nil
}

func (f *ingestorFake) ProcessByID(_ context.Context, id int64) (*domain.Document, error) {
	f.processed = append(f.processed, id)
	return &domain.Document{ID: id, Status: domain.StatusCompleted}, nil
}

type querierFake struct {
	doc        *domain.Document
	getErr     error
	listErr    error
	deleted    []int64
	downloaded []int64
}

func (f *querierFake) List(_ context.Context, identity domain.Identity, filter domain.ListFilter, page domain.Page) ([]domain.Document, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	if f.doc == nil {
		return nil, 0, nil
	}
	return []domain.Document{*f.doc}, 1, nil
}

func (f *querierFake) GetByID(_ context.Context, identity domain.Identity, id int64) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.doc == nil || f.doc.ID != id {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("missing"))
	}
	return f.doc, nil
}

func (f *querierFake) Search(_ context.Context, identity domain.Identity, query string, filter domain.ListFilter, page domain.Page) (*ports.SearchOutcome, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("empty query"))
	}
	outcome := &ports.SearchOutcome{Suggestions: []string{"safety circular"}}
	if f.doc != nil {
		outcome.Results = []domain.SearchResult{{Document: *f.doc, Score: 7}}
		outcome.Total = 1
	}
	return outcome, nil
}

func (f *querierFake) Download(_ context.Context, identity domain.Identity, id int64) (*ports.DownloadPayload, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "download", errors.New("missing"))
	}
	f.downloaded = append(f.downloaded, id)
	return &ports.DownloadPayload{
		Content:      io.NopCloser(strings.NewReader("file bytes")),
		OriginalName: f.doc.OriginalName,
		MediaType:    "application/pdf",
		SizeBytes:    10,
	}, nil
}

func (f *querierFake) Delete(_ context.Context, identity domain.Identity, id int64) error {
	if f.doc == nil || f.doc.ID != id {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete", errors.New("missing"))
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestHandler(ingest ports.DocumentIngestor, query ports.DocumentQueryService) http.Handler {
	router := NewRouter(ingest, query, NewAuthenticator(testSecret), RouterOptions{})
	return router.Handler()
}

func signToken(t *testing.T, subject, department, role string, active bool) string {
	t.Helper()
	claims := accessClaims{
		Department: department,
		Role:       role,
		Active:     active,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authedRequest(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "op-17", domain.DeptSafety, "staff", true))
	return req
}

func decodeEnvelope(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func multipartBody(t *testing.T, department string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if department != "" {
		if err := writer.WriteField("department", department); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, name := range filenames {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("file content")); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestHealthzIsOpen(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &querierFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &querierFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/documents", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestInactiveUserIsUnauthorized(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &querierFake{})

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "op-17", domain.DeptSafety, "staff", false))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive user, got %d", res.Code)
	}
}

func TestUploadReturns201WithPerFileResults(t *testing.T) {
	ingest := &ingestorFake{}
	handler := newTestHandler(ingest, &querierFake{})

	body, contentType := multipartBody(t, domain.DeptSafety, "notice.pdf", "drill.pdf")
	req := authedRequest(t, http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	resp := decodeEnvelope(t, res)
	if resp["success"] != true {
		t.Fatalf("expected success envelope, got %v", resp)
	}
	data := resp["data"].(map[string]any)
	if data["count"].(float64) != 2 {
		t.Fatalf("expected 2 results, got %v", data["count"])
	}
	if ingest.uploads != 1 {
		t.Fatalf("expected one upload call, got %d", ingest.uploads)
	}
}

func TestUploadUnknownDepartmentIs400(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &querierFake{})

	body, contentType := multipartBody(t, "CATERING", "notice.pdf")
	req := authedRequest(t, http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadWithoutFilesIs400(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &querierFake{})

	body, contentType := multipartBody(t, domain.DeptSafety)
	req := authedRequest(t, http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchWithoutQueryIs400(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &querierFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(t, http.MethodGet, "/documents/search", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchReturnsRankedResults(t *testing.T) {
	doc := &domain.Document{ID: 7, OriginalName: "audit.pdf", Department: domain.DeptSafety}
	handler := newTestHandler(&ingestorFake{}, &querierFake{doc: doc})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(t, http.MethodGet, "/documents/search?q=audit", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	data := decodeEnvelope(t, res)["data"].(map[string]any)
	if data["total"].(float64) != 1 {
		t.Fatalf("expected total 1, got %v", data["total"])
	}
	if len(data["suggestions"].([]any)) == 0 {
		t.Fatalf("expected suggestions")
	}
}

func TestForeignDepartmentIs403(t *testing.T) {
	q := &querierFake{listErr: domain.WrapError(domain.ErrForbidden, "scope", errors.New("pinned"))}
	handler := newTestHandler(&ingestorFake{}, q)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(t, http.MethodGet, "/documents?department=FINANCE", nil))
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
}

func TestGetDocumentInvalidIDIs400(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &querierFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(t, http.MethodGet, "/documents/abc", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentUnknownIs404(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &querierFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(t, http.MethodGet, "/documents/42", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestDownloadSetsDispositionHeaders(t *testing.T) {
	doc := &domain.Document{ID: 7, OriginalName: "audit.pdf", Department: domain.DeptSafety}
	handler := newTestHandler(&ingestorFake{}, &querierFake{doc: doc})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(t, http.MethodGet, "/documents/7/download", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "audit.pdf") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if res.Body.String() != "file bytes" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestDeleteReturnsConfirmation(t *testing.T) {
	doc := &domain.Document{ID: 7, OriginalName: "audit.pdf", Department: domain.DeptSafety}
	q := &querierFake{doc: doc}
	handler := newTestHandler(&ingestorFake{}, q)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(t, http.MethodDelete, "/documents/7", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(q.deleted) != 1 || q.deleted[0] != 7 {
		t.Fatalf("delete not delegated: %v", q.deleted)
	}
}

func TestProcessReturnsResolvedRecord(t *testing.T) {
	doc := &domain.Document{ID: 7, OriginalName: "audit.pdf", Department: domain.DeptSafety}
	ingest := &ingestorFake{}
	handler := newTestHandler(ingest, &querierFake{doc: doc})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(t, http.MethodPost, "/documents/7/process", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(ingest.processed) != 1 || ingest.processed[0] != 7 {
		t.Fatalf("process not delegated: %v", ingest.processed)
	}
}
