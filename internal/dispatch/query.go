package dispatch

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/job"
)

// QueuedJobs returns every waiting job matching q, ordered by
// FastTracked with fast-tracked jobs sorted last, mirroring murdock.py's
// sorted(..., key=lambda job: job.fasttracked) (False sorts before
// True). Fast-tracking only affects which channel a job is dequeued
// from, not its position in this display ordering.
func (c *Core) QueuedJobs(q job.Query) []*job.Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*job.Job
	for _, j := range c.waiting {
		if q.Matches(j) {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(i, k int) bool {
		return !out[i].FastTracked && out[k].FastTracked
	})
	return out
}

// RunningJobs returns every occupied running slot matching q.
func (c *Core) RunningJobs(q job.Query) []*job.Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*job.Job
	for _, j := range c.running {
		if j != nil && q.Matches(j) {
			out = append(out, j)
		}
	}
	return out
}

// AllJobs returns finished jobs from the persistence adapter matching
// q, in addition to whatever in-memory queued/running jobs match.
func (c *Core) AllJobs(ctx context.Context, q job.Query) ([]*job.Job, error) {
	finished, err := c.persist.FindJobs(ctx, q)
	if err != nil {
		return nil, err
	}
	out := append([]*job.Job{}, c.RunningJobs(q)...)
	out = append(out, c.QueuedJobs(q)...)
	out = append(out, finished...)
	return out, nil
}

// RemoveFinishedJobs deletes persisted jobs matching q.
func (c *Core) RemoveFinishedJobs(ctx context.Context, q job.Query) (int, error) {
	n, err := c.persist.DeleteJobs(ctx, q)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.reloadJobs()
	}
	return n, nil
}

// Restart re-schedules a finished job's trigger against its original
// commit SHA as a brand-new job, matching murdock.py's restart_job.
func (c *Core) Restart(ctx context.Context, uid string) (string, error) {
	j, err := c.persist.FindJob(ctx, uid)
	if err != nil {
		return "", err
	}
	if j == nil {
		return "", nil
	}

	newJob := &job.Job{
		UID:     uuid.NewString(),
		Commit:  j.Commit,
		Trigger: j.Trigger,
		Config:  j.Config,
		Status:  job.Status{Phase: job.PhaseQueued},
	}
	newJob.FastTracked = c.resolveFastTrack(ctx, newJob.Trigger, newJob.Config)

	c.mu.Lock()
	c.enqueueLocked(newJob)
	c.mu.Unlock()

	log.Info().Str("uid", newJob.UID).Str("restarted_from", uid).Msg("job restarted")

	if err := c.hosting.SetCommitStatus(ctx, newJob.Commit.SHA, CommitStatus{
		State:       "pending",
		Context:     "kamino-ci",
		Description: "the build has been queued",
		TargetURL:   c.jobURL(newJob),
	}); err != nil {
		log.Warn().Err(err).Str("uid", newJob.UID).Msg("failed to set queued commit status")
	}

	c.reloadJobs()
	return newJob.UID, nil
}
