// Package buildcontext gathers a pull request's prior build outcome so
// the dispatch core can decide whether a new job for that PR should
// fast-track, the way internal/context in the review-bot lineage this
// package descends from gathered prior-review context to steer a new
// review — here the signal is build history, not comment history.
package buildcontext

import (
	"context"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/job"
)

// Provider implements dispatch.BuildHistory against the persistence
// adapter's finished-job record.
type Provider struct {
	persist dispatch.PersistenceAdapter
}

// NewProvider wraps a persistence adapter.
func NewProvider(persist dispatch.PersistenceAdapter) *Provider {
	return &Provider{persist: persist}
}

var _ dispatch.BuildHistory = (*Provider)(nil)

// LastResult returns the most recently finished job's result for
// prNumber. ok is false if the PR has no prior finished job or the
// lookup failed. A lookup failure is not logged: dispatch.BuildHistory
// has no error return, so it reaches the caller only as ok == false.
func (p *Provider) LastResult(ctx context.Context, prNumber int) (job.Result, bool) {
	jobs, err := p.persist.FindJobs(ctx, job.Query{PRNumber: &prNumber, Limit: 1})
	if err != nil || len(jobs) == 0 {
		return job.ResultUnset, false
	}
	return jobs[0].Result, true
}
