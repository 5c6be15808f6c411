package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kamino-ci/kamino/internal/job"
	"github.com/kamino-ci/kamino/internal/observer"
)

type fakeCore struct {
	queued    []*job.Job
	running   []*job.Job
	all       []*job.Job
	allErr    error
	removed   int
	removeErr error
	restartTo string
	restartEr error
}

func (f *fakeCore) QueuedJobs(q job.Query) []*job.Job   { return f.queued }
func (f *fakeCore) RunningJobs(q job.Query) []*job.Job  { return f.running }
func (f *fakeCore) AllJobs(ctx context.Context, q job.Query) ([]*job.Job, error) {
	return f.all, f.allErr
}
func (f *fakeCore) RemoveFinishedJobs(ctx context.Context, q job.Query) (int, error) {
	return f.removed, f.removeErr
}
func (f *fakeCore) Restart(ctx context.Context, uid string) (string, error) {
	return f.restartTo, f.restartEr
}

func TestHealthEndpoint(t *testing.T) {
	r := Router(http.NotFoundHandler(), &fakeCore{}, observer.NewHub())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestQueuedJobsEndpoint(t *testing.T) {
	core := &fakeCore{queued: []*job.Job{{UID: "job-1"}}}
	r := Router(http.NotFoundHandler(), core, observer.NewHub())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/queued", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []*job.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].UID != "job-1" {
		t.Fatalf("got = %+v, want one job with UID job-1", got)
	}
}

func TestRestartEndpointNotFound(t *testing.T) {
	core := &fakeCore{restartTo: ""}
	r := Router(http.NotFoundHandler(), core, observer.NewHub())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/missing-uid/restart", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRestartEndpointSuccess(t *testing.T) {
	core := &fakeCore{restartTo: "job-2"}
	r := Router(http.NotFoundHandler(), core, observer.NewHub())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/job-1/restart", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["uid"] != "job-2" {
		t.Fatalf("uid = %q, want job-2", body["uid"])
	}
}

func TestDeleteFinishedJobsEndpoint(t *testing.T) {
	core := &fakeCore{removed: 3}
	r := Router(http.NotFoundHandler(), core, observer.NewHub())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["removed"] != 3 {
		t.Fatalf("removed = %d, want 3", body["removed"])
	}
}

func TestParseQueryExtractsFilters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/jobs?pr=42&limit=5", nil)
	q := parseQuery(req)
	if q.PRNumber == nil || *q.PRNumber != 42 {
		t.Fatalf("PRNumber = %v, want 42", q.PRNumber)
	}
	if q.Limit != 5 {
		t.Fatalf("Limit = %d, want 5", q.Limit)
	}
}
