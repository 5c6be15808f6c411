// Package intake is the HTTP façade: the GitHub webhook endpoint, the
// REST job-query endpoints, and the observer WebSocket route, all
// mounted on a gorilla/mux router the way the review-bot lineage's
// internal/server wires its own HTTP surface. Intake never touches
// dispatch.Core's state directly — it enqueues an asynq task per
// webhook delivery so a core processing stall never blocks the HTTP
// response GitHub is waiting on.
package intake

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/tasks"
)

// Enqueuer implements githubhost.Dispatcher by handing events to asynq
// instead of a dispatch.Core directly.
type Enqueuer struct {
	client *asynq.Client
	queue  string
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client, queue string) *Enqueuer {
	return &Enqueuer{client: client, queue: queue}
}

func (e *Enqueuer) HandlePullRequestEvent(ctx context.Context, evt dispatch.PullRequestEvent) {
	task, err := tasks.NewPullRequestTask(evt)
	if err != nil {
		log.Error().Err(err).Msg("failed to build pull_request task")
		return
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue)); err != nil {
		log.Error().Err(err).Msg("failed to enqueue pull_request task")
	}
}

func (e *Enqueuer) HandlePushEvent(ctx context.Context, evt dispatch.PushEvent) {
	task, err := tasks.NewPushTask(evt)
	if err != nil {
		log.Error().Err(err).Msg("failed to build push task")
		return
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue)); err != nil {
		log.Error().Err(err).Msg("failed to enqueue push task")
	}
}
