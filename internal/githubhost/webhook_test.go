package githubhost

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kamino-ci/kamino/internal/dispatch"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	prs   []dispatch.PullRequestEvent
	pushe []dispatch.PushEvent
}

func (f *fakeDispatcher) HandlePullRequestEvent(ctx context.Context, evt dispatch.PullRequestEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs = append(f.prs, evt)
}

func (f *fakeDispatcher) HandlePushEvent(ctx context.Context, evt dispatch.PushEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushe = append(f.pushe, evt)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, h *WebhookHandler, event string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", event)
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	disp := &fakeDispatcher{}
	h := NewWebhookHandler("sekrit", disp, nil)

	body := []byte(`{"ref":"refs/heads/main","after":"abc"}`)
	rec := postWebhook(t, h, "push", body, "sha256=deadbeef")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(disp.pushe) != 0 {
		t.Fatal("invalid signature should never reach the dispatcher")
	}
}

func TestWebhookAcceptsValidSignatureAndRoutesPush(t *testing.T) {
	secret := "sekrit"
	disp := &fakeDispatcher{}
	h := NewWebhookHandler(secret, disp, nil)

	body := []byte(`{"ref":"refs/heads/main","after":"abc123","pusher":{"name":"octocat"}}`)
	rec := postWebhook(t, h, "push", body, sign(secret, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(disp.pushe) != 1 {
		t.Fatalf("pushe = %d events, want 1", len(disp.pushe))
	}
	if disp.pushe[0].Ref != "main" {
		t.Fatalf("Ref = %q, want trimmed to main", disp.pushe[0].Ref)
	}
	if disp.pushe[0].After != "abc123" {
		t.Fatalf("After = %q, want abc123", disp.pushe[0].After)
	}
}

func TestWebhookRoutesPullRequestWithSortableLabels(t *testing.T) {
	secret := "sekrit"
	disp := &fakeDispatcher{}
	h := NewWebhookHandler(secret, disp, nil)

	body := []byte(`{
		"action": "labeled",
		"label": {"name": "fast-track"},
		"pull_request": {
			"number": 7,
			"title": "add feature",
			"draft": false,
			"mergeable": true,
			"html_url": "https://github.com/o/r/pull/7",
			"user": {"Login": "octocat"},
			"head": {"sha": "headsha"},
			"base": {"ref": "main", "sha": "basesha", "repo": {"full_name": "o/r"}},
			"labels": [{"name": "fast-track"}]
		}
	}`)
	rec := postWebhook(t, h, "pull_request", body, sign(secret, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(disp.prs) != 1 {
		t.Fatalf("prs = %d events, want 1", len(disp.prs))
	}
	evt := disp.prs[0]
	if evt.PR.Number != 7 || evt.HeadSHA != "headsha" {
		t.Fatalf("unexpected PR event: %+v", evt)
	}
	if evt.Label != "fast-track" {
		t.Fatalf("Label = %q, want fast-track", evt.Label)
	}
}

func TestWebhookDeduplicatesDeliveries(t *testing.T) {
	secret := ""
	disp := &fakeDispatcher{}
	seen := &fakeDedup{}
	h := NewWebhookHandler(secret, disp, seen)

	body := []byte(`{"ref":"refs/heads/main","after":"abc"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	req2 := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req2.Header.Set("X-GitHub-Event", "push")
	req2.Header.Set("X-GitHub-Delivery", "delivery-1")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)

	if len(disp.pushe) != 1 {
		t.Fatalf("pushe = %d events, want 1 (second delivery should be deduplicated)", len(disp.pushe))
	}
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeDedup) Seen(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[id] {
		return true
	}
	f.seen[id] = true
	return false
}

func TestWebhookRejectsNonPost(t *testing.T) {
	disp := &fakeDispatcher{}
	h := NewWebhookHandler("", disp, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
