package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
	"github.com/joseph-ayodele/network-extractor/internal/jobs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeService keeps jobs in memory keyed by owner and id.
type fakeService struct {
	jobs      map[string]*entity.Job
	submitted []jobs.Submission
	submitErr error
	lastLimit int
}

func newFakeService() *fakeService {
	return &fakeService{jobs: map[string]*entity.Job{}}
}

func (f *fakeService) key(id, owner string) string { return owner + "/" + id }

func (f *fakeService) put(job *entity.Job) { f.jobs[f.key(job.ID, job.Owner)] = job }

func (f *fakeService) Submit(_ context.Context, sub jobs.Submission) (*entity.Job, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, sub)
	job := &entity.Job{ID: "job-1", Owner: sub.Owner, Status: constants.JobStatusPending, OriginalFilename: sub.Filename}
	f.put(job)
	return job, nil
}

func (f *fakeService) GetStatus(_ context.Context, jobID, owner string) (*entity.Job, error) {
	job, ok := f.jobs[f.key(jobID, owner)]
	if !ok {
		return nil, common.NotFoundError("job " + jobID + " not found")
	}
	return job, nil
}

func (f *fakeService) ListJobs(_ context.Context, owner string, limit int) ([]entity.Job, error) {
	f.lastLimit = limit
	var out []entity.Job
	for _, j := range f.jobs {
		if j.Owner == owner {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeService) GetDownload(ctx context.Context, jobID, owner string) (string, error) {
	job, err := f.GetStatus(ctx, jobID, owner)
	if err != nil {
		return "", err
	}
	if job.Status != constants.JobStatusCompleted {
		return "", common.NotFoundError("job has no result")
	}
	return job.DownloadHandle, nil
}

func (f *fakeService) GetResult(ctx context.Context, jobID, owner, format string) (*jobs.Result, error) {
	if _, err := f.GetDownload(ctx, jobID, owner); err != nil {
		return nil, err
	}
	if format != "json" {
		return nil, common.ValidationError("format must be json or xlsx")
	}
	return &jobs.Result{Body: []byte(`[]`), ContentType: constants.MIMEJSON, Filename: "list_result.json"}, nil
}

func newTestRouter(svc JobService, cfg RouterConfig) *gin.Engine {
	return NewRouter(svc, cfg, newTestLogger())
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestCreateJob(t *testing.T) {
	svc := newFakeService()
	r := newTestRouter(svc, RouterConfig{})

	body, ct := multipartBody(t, "file", "list.csv", []byte("name\nA\n"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(HeaderOwnerID, "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["job_id"] != "job-1" || resp["status"] != "pending" {
		t.Errorf("unexpected response %v", resp)
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(svc.submitted))
	}
	sub := svc.submitted[0]
	if sub.Owner != "alice" || sub.Filename != "list.csv" || string(sub.Data) != "name\nA\n" {
		t.Errorf("unexpected submission %+v", sub)
	}
	if w.Header().Get(HeaderRequestID) == "" {
		t.Error("expected request id header")
	}
}

func TestCreateJob_Errors(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		data      []byte
		submitErr error
		wantCode  int
	}{
		{"missing file field", "upload", []byte("x"), nil, http.StatusBadRequest},
		{"too large", "file", bytes.Repeat([]byte("x"), 64), nil, http.StatusBadRequest},
		{"service validation", "file", []byte("x"), common.ValidationError("filename: has unsupported extension"), http.StatusBadRequest},
		{"storage failure", "file", []byte("x"), common.StorageError("upload", io.ErrUnexpectedEOF), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.submitErr = tt.submitErr
			r := newTestRouter(svc, RouterConfig{MaxUploadBytes: 32})

			body, ct := multipartBody(t, tt.field, "list.csv", tt.data)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if strings.Contains(w.Body.String(), "unexpected EOF") {
				t.Error("storage cause must not leak to the client")
			}
		})
	}
}

func TestGetJob(t *testing.T) {
	svc := newFakeService()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.put(&entity.Job{
		ID: "done", Owner: "alice", Status: constants.JobStatusCompleted, OriginalFilename: "list.pdf",
		DownloadHandle: "https://blob.test/x", ResultLocation: "alice/processed/done_result.json",
		SourceLocation: "uploads/alice/x", RecordCount: 4, CreatedAt: now, UpdatedAt: now,
	})
	svc.put(&entity.Job{
		ID: "bad", Owner: "alice", Status: constants.JobStatusFailed, ErrorDetail: "no provider records were found",
		CreatedAt: now, UpdatedAt: now,
	})
	r := newTestRouter(svc, RouterConfig{})

	get := func(path, owner string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if owner != "" {
			req.Header.Set(HeaderOwnerID, owner)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/api/v1/jobs/done", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view["status"] != "completed" || view["download_url"] != "https://blob.test/x" {
		t.Errorf("unexpected view %v", view)
	}
	for _, hidden := range []string{"source_location", "result_location", "owner", "error"} {
		if _, ok := view[hidden]; ok {
			t.Errorf("field %q must not be exposed", hidden)
		}
	}

	w = get("/api/v1/jobs/bad", "alice")
	view = nil
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view["error"] != "no provider records were found" {
		t.Errorf("expected error detail, got %v", view)
	}
	if _, ok := view["download_url"]; ok {
		t.Error("failed job must not carry a download url")
	}

	if w := get("/api/v1/jobs/done", "bob"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another owner, got %d", w.Code)
	}
	if w := get("/api/v1/jobs/missing", "alice"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestListJobs(t *testing.T) {
	svc := newFakeService()
	svc.put(&entity.Job{ID: "a", Owner: "alice", Status: constants.JobStatusPending})
	svc.put(&entity.Job{ID: "b", Owner: "bob", Status: constants.JobStatusPending})
	r := newTestRouter(svc, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=5", nil)
	req.Header.Set(HeaderOwnerID, "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0]["job_id"] != "a" {
		t.Errorf("unexpected jobs %v", resp.Jobs)
	}
	if svc.lastLimit != 5 {
		t.Errorf("expected limit 5 passed through, got %d", svc.lastLimit)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=abc", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set(HeaderOwnerID, "carol")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"jobs":[]`) {
		t.Errorf("expected empty list, got %s", w.Body.String())
	}
}

func TestDownloadAndResult(t *testing.T) {
	svc := newFakeService()
	svc.put(&entity.Job{ID: "done", Status: constants.JobStatusCompleted, DownloadHandle: "https://blob.test/r"})
	svc.put(&entity.Job{ID: "busy", Status: constants.JobStatusProcessing})
	r := newTestRouter(svc, RouterConfig{})

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := do("/api/v1/jobs/done/download")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "https://blob.test/r") {
		t.Errorf("unexpected download response %d %s", w.Code, w.Body.String())
	}
	if w := do("/api/v1/jobs/busy/download"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before completion, got %d", w.Code)
	}

	w = do("/api/v1/jobs/done/result")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != constants.MIMEJSON {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="list_result.json"` {
		t.Errorf("unexpected disposition %q", cd)
	}
	if w := do("/api/v1/jobs/done/result?format=pdf"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	ready := true
	r := newTestRouter(newFakeService(), RouterConfig{Ready: func(context.Context) error {
		if !ready {
			return io.EOF
		}
		return nil
	}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	ready = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
