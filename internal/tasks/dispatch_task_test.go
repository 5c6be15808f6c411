package tasks

import (
	"reflect"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/job"
)

func TestPullRequestTaskRoundTrips(t *testing.T) {
	evt := dispatch.PullRequestEvent{
		Action:  "labeled",
		Label:   "fast-track",
		HeadSHA: "sha1",
		Draft:   false,
		PR:      job.PullRequestInfo{Number: 9, Title: "fix bug"},
	}

	task, err := NewPullRequestTask(evt)
	if err != nil {
		t.Fatalf("NewPullRequestTask() = %v", err)
	}
	if task.Type() != TypePullRequestEvent {
		t.Fatalf("Type() = %q, want %q", task.Type(), TypePullRequestEvent)
	}

	got, err := ParsePullRequestTask(task)
	if err != nil {
		t.Fatalf("ParsePullRequestTask() = %v", err)
	}
	if !reflect.DeepEqual(got, evt) {
		t.Fatalf("round-tripped event = %+v, want %+v", got, evt)
	}
}

func TestPushTaskRoundTrips(t *testing.T) {
	evt := dispatch.PushEvent{Ref: "main", After: "abc123", Pusher: "octocat"}

	task, err := NewPushTask(evt)
	if err != nil {
		t.Fatalf("NewPushTask() = %v", err)
	}
	if task.Type() != TypePushEvent {
		t.Fatalf("Type() = %q, want %q", task.Type(), TypePushEvent)
	}

	got, err := ParsePushTask(task)
	if err != nil {
		t.Fatalf("ParsePushTask() = %v", err)
	}
	if got != evt {
		t.Fatalf("round-tripped event = %+v, want %+v", got, evt)
	}
}

func TestParsePullRequestTaskRejectsMalformedPayload(t *testing.T) {
	task := asynq.NewTask(TypePullRequestEvent, []byte("not json"))
	if _, err := ParsePullRequestTask(task); err == nil {
		t.Fatal("expected an error parsing a malformed payload")
	}
}
