package consumer

import (
	"context"
	"sync"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/tasks"
)

type fakeCore struct {
	mu    sync.Mutex
	prs   []dispatch.PullRequestEvent
	pushe []dispatch.PushEvent
}

func (f *fakeCore) HandlePullRequestEvent(ctx context.Context, evt dispatch.PullRequestEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs = append(f.prs, evt)
}

func (f *fakeCore) HandlePushEvent(ctx context.Context, evt dispatch.PushEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushe = append(f.pushe, evt)
}

func TestMuxRoutesPullRequestTaskToCore(t *testing.T) {
	core := &fakeCore{}
	_, mux := NewServer(asynq.RedisClientOpt{Addr: "localhost:6379"}, "dispatch", 1, core)

	task, err := tasks.NewPullRequestTask(dispatch.PullRequestEvent{Action: "labeled", HeadSHA: "sha1"})
	if err != nil {
		t.Fatalf("NewPullRequestTask() = %v", err)
	}

	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask() = %v", err)
	}
	if len(core.prs) != 1 || core.prs[0].HeadSHA != "sha1" {
		t.Fatalf("core.prs = %+v, want one event with HeadSHA sha1", core.prs)
	}
}

func TestMuxRoutesPushTaskToCore(t *testing.T) {
	core := &fakeCore{}
	_, mux := NewServer(asynq.RedisClientOpt{Addr: "localhost:6379"}, "dispatch", 1, core)

	task, err := tasks.NewPushTask(dispatch.PushEvent{Ref: "main", After: "abc"})
	if err != nil {
		t.Fatalf("NewPushTask() = %v", err)
	}

	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask() = %v", err)
	}
	if len(core.pushe) != 1 || core.pushe[0].Ref != "main" {
		t.Fatalf("core.pushe = %+v, want one event with Ref main", core.pushe)
	}
}

func TestMuxRejectsMalformedPayload(t *testing.T) {
	core := &fakeCore{}
	_, mux := NewServer(asynq.RedisClientOpt{Addr: "localhost:6379"}, "dispatch", 1, core)

	task := asynq.NewTask(tasks.TypePullRequestEvent, []byte("not json"))
	if err := mux.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected an error for a malformed task payload")
	}
}
