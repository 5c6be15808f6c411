package githubhost

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/job"
)

// Dispatcher is the subset of *dispatch.Core the webhook handler drives.
type Dispatcher interface {
	HandlePullRequestEvent(ctx context.Context, evt dispatch.PullRequestEvent)
	HandlePushEvent(ctx context.Context, evt dispatch.PushEvent)
}

// WebhookHandler verifies and routes GitHub webhook deliveries.
type WebhookHandler struct {
	secret     string
	dispatcher Dispatcher
	seen       Deduplicator
}

// Deduplicator suppresses webhook redeliveries already processed,
// keyed by the delivery GUID GitHub sets on every webhook request.
type Deduplicator interface {
	// Seen records id and reports whether it was already recorded.
	Seen(id string) bool
}

// NewWebhookHandler builds a handler that verifies signatures against
// secret and forwards parsed events to dispatcher. seen may be nil to
// disable deduplication.
func NewWebhookHandler(secret string, dispatcher Dispatcher, seen Deduplicator) *WebhookHandler {
	return &WebhookHandler{secret: secret, dispatcher: dispatcher, seen: seen}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		log.Warn().Msg("rejected webhook with invalid signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if h.seen != nil && deliveryID != "" && h.seen.Seen(deliveryID) {
		log.Debug().Str("delivery", deliveryID).Msg("ignoring duplicate webhook delivery")
		w.WriteHeader(http.StatusOK)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	switch eventType {
	case "pull_request":
		h.handlePullRequest(r.Context(), body)
	case "push":
		h.handlePush(r.Context(), body)
	default:
		log.Debug().Str("event", eventType).Msg("ignoring unhandled webhook event type")
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if h.secret == "" {
		return true
	}
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

type pullRequestPayload struct {
	Action string `json:"action"`
	Label  struct {
		Name string `json:"name"`
	} `json:"label"`
	PullRequest struct {
		Number         int                    `json:"number"`
		Title          string                 `json:"title"`
		Draft          bool                   `json:"draft"`
		Mergeable      *bool                  `json:"mergeable"`
		HTMLURL        string                 `json:"html_url"`
		User           struct{ Login string } `json:"user"`
		MergeCommitSHA string                 `json:"merge_commit_sha"`
		Head           struct {
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref  string `json:"ref"`
			SHA  string `json:"sha"`
			Repo struct {
				FullName string `json:"full_name"`
			} `json:"repo"`
		} `json:"base"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
	} `json:"pull_request"`
}

func (h *WebhookHandler) handlePullRequest(ctx context.Context, body []byte) {
	var payload pullRequestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error().Err(err).Msg("failed to parse pull_request webhook payload")
		return
	}

	labels := make([]string, 0, len(payload.PullRequest.Labels))
	for _, l := range payload.PullRequest.Labels {
		labels = append(labels, l.Name)
	}

	evt := dispatch.PullRequestEvent{
		Action:  payload.Action,
		Label:   payload.Label.Name,
		HeadSHA: payload.PullRequest.Head.SHA,
		Draft:   payload.PullRequest.Draft,
		PR: job.PullRequestInfo{
			Number:       payload.PullRequest.Number,
			Title:        payload.PullRequest.Title,
			User:         payload.PullRequest.User.Login,
			URL:          payload.PullRequest.HTMLURL,
			MergeCommit:  payload.PullRequest.MergeCommitSHA,
			BaseRepo:     payload.PullRequest.Base.Repo.FullName,
			BaseBranch:   payload.PullRequest.Base.Ref,
			BaseCommit:   payload.PullRequest.Base.SHA,
			BaseFullName: payload.PullRequest.Base.Repo.FullName,
			Mergeable:    payload.PullRequest.Mergeable != nil && *payload.PullRequest.Mergeable,
			Labels:       labels,
		},
	}

	h.dispatcher.HandlePullRequestEvent(ctx, evt)
}

type pushPayload struct {
	Ref    string `json:"ref"`
	After  string `json:"after"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
}

func (h *WebhookHandler) handlePush(ctx context.Context, body []byte) {
	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error().Err(err).Msg("failed to parse push webhook payload")
		return
	}

	h.dispatcher.HandlePushEvent(ctx, dispatch.PushEvent{
		Ref:    trimRefPrefix(payload.Ref),
		After:  payload.After,
		Pusher: payload.Pusher.Name,
	})
}

func trimRefPrefix(ref string) string {
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}
