// Package consumer is the asynq worker process: it dequeues the
// pull_request/push task envelopes internal/intake enqueued and
// replays them against a dispatch.Core, the same server/worker process
// split the review-bot lineage uses to keep webhook intake latency
// independent of how long event processing takes.
package consumer

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/tasks"
)

// Core is the subset of *dispatch.Core the consumer drives.
type Core interface {
	HandlePullRequestEvent(ctx context.Context, evt dispatch.PullRequestEvent)
	HandlePushEvent(ctx context.Context, evt dispatch.PushEvent)
}

// NewServer builds an asynq server wired to process dispatch tasks
// against core.
func NewServer(redisOpt asynq.RedisConnOpt, queue string, concurrency int, core Core) (*asynq.Server, *asynq.ServeMux) {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePullRequestEvent, func(ctx context.Context, task *asynq.Task) error {
		evt, err := tasks.ParsePullRequestTask(task)
		if err != nil {
			return fmt.Errorf("invalid pull_request task payload: %w", err)
		}
		core.HandlePullRequestEvent(ctx, evt)
		return nil
	})
	mux.HandleFunc(tasks.TypePushEvent, func(ctx context.Context, task *asynq.Task) error {
		evt, err := tasks.ParsePushTask(task)
		if err != nil {
			return fmt.Errorf("invalid push task payload: %w", err)
		}
		core.HandlePushEvent(ctx, evt)
		return nil
	})

	log.Info().Int("concurrency", concurrency).Str("queue", queue).Msg("dispatch consumer configured")
	return server, mux
}
