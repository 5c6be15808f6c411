// Package tasks defines the asynq task envelopes that decouple the
// HTTP webhook intake process from the dispatch core's event
// processing: the intake handler enqueues a task per webhook delivery,
// and the consumer process dequeues and replays it against the core.
// Grounded on the review-bot lineage's tasks package, which used the
// same asynq payload-envelope pattern for its own review tasks.
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/kamino-ci/kamino/internal/dispatch"
)

const (
	TypePullRequestEvent = "dispatch:pull_request"
	TypePushEvent        = "dispatch:push"
)

// NewPullRequestTask wraps a PullRequestEvent for asynq delivery.
func NewPullRequestTask(evt dispatch.PullRequestEvent) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePullRequestEvent, data), nil
}

// ParsePullRequestTask unwraps a PullRequestEvent task payload.
func ParsePullRequestTask(task *asynq.Task) (dispatch.PullRequestEvent, error) {
	var evt dispatch.PullRequestEvent
	if err := json.Unmarshal(task.Payload(), &evt); err != nil {
		return dispatch.PullRequestEvent{}, err
	}
	return evt, nil
}

// NewPushTask wraps a PushEvent for asynq delivery.
func NewPushTask(evt dispatch.PushEvent) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePushEvent, data), nil
}

// ParsePushTask unwraps a PushEvent task payload.
func ParsePushTask(task *asynq.Task) (dispatch.PushEvent, error) {
	var evt dispatch.PushEvent
	if err := json.Unmarshal(task.Payload(), &evt); err != nil {
		return dispatch.PushEvent{}, err
	}
	return evt, nil
}
