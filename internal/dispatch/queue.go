package dispatch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/job"
)

// enqueueLocked adds j to WaitingSet and routes it to its lane's channel. It
// must be called with c.mu held.
//
// Fast-tracking only matters when a job would otherwise have to wait:
// a fast-tracked job only takes the fast-track lane when every running
// slot is currently occupied, matching spec.md §4.3's enqueue rule.
func (c *Core) enqueueLocked(j *job.Job) {
	c.waiting[j.UID] = j
	if j.FastTracked && c.allSlotsOccupiedLocked() {
		c.fastTrackCh <- j
	} else {
		c.normalCh <- j
	}
}

func (c *Core) allSlotsOccupiedLocked() bool {
	for _, r := range c.running {
		if r == nil {
			return false
		}
	}
	return true
}

// removeFromWaitingLocked drops j from WaitingSet without touching the
// channel it was posted to; the worker loop discards canceled jobs it
// pulls off a channel rather than trying to unpost them.
func (c *Core) removeFromWaitingLocked(uid string) {
	delete(c.waiting, uid)
}

// cancelQueued marks a still-queued job canceled and removes it from
// the waiting index. It matches murdock.py's cancel_queued_job: a
// canceled queued job never reaches the worker's build step, only its
// finalize step, so callers still see a terminal status callback.
func (c *Core) cancelQueued(ctx context.Context, j *job.Job, reload bool) {
	c.mu.Lock()
	_, stillWaiting := c.waiting[j.UID]
	if stillWaiting {
		j.Canceled = true
		c.removeFromWaitingLocked(j.UID)
	}
	c.mu.Unlock()

	if !stillWaiting {
		return
	}
	log.Info().Str("uid", j.UID).Msg("canceled queued job")

	if err := c.hosting.SetCommitStatus(ctx, j.Commit.SHA, CommitStatus{
		State:       "pending",
		Context:     "kamino-ci",
		Description: "build was canceled",
		TargetURL:   c.jobURL(j),
	}); err != nil {
		log.Warn().Err(err).Str("uid", j.UID).Msg("failed to set canceled commit status")
	}

	c.finalize(ctx, j)
	if reload {
		c.reloadJobs()
	}
}

// stopRunningJob requests the execution adapter stop a running job. The
// job's own worker goroutine performs the finalize step once Execute
// returns, matching murdock.py's stop_running_job.
func (c *Core) stopRunningJob(ctx context.Context, j *job.Job, reload bool) {
	c.mu.Lock()
	j.Canceled = true
	c.mu.Unlock()

	if err := c.exec.Stop(j.UID); err != nil {
		log.Warn().Err(err).Str("uid", j.UID).Msg("failed to stop running job")
	}

	if err := c.hosting.SetCommitStatus(ctx, j.Commit.SHA, CommitStatus{
		State:       "pending",
		Context:     "kamino-ci",
		Description: "build was stopped",
		TargetURL:   c.jobURL(j),
	}); err != nil {
		log.Warn().Err(err).Str("uid", j.UID).Msg("failed to set stopped commit status")
	}

	if reload {
		c.reloadJobs()
	}
}

// cancelQueuedJobsMatching cancels every queued job satisfying match.
func (c *Core) cancelQueuedJobsMatching(ctx context.Context, match func(*job.Job) bool) {
	c.mu.Lock()
	var hits []*job.Job
	for _, j := range c.waiting {
		if match(j) {
			hits = append(hits, j)
		}
	}
	c.mu.Unlock()

	for _, j := range hits {
		c.cancelQueued(ctx, j, false)
	}
	if len(hits) > 0 {
		c.reloadJobs()
	}
}

// stopRunningJobsMatching stops every running job satisfying match.
func (c *Core) stopRunningJobsMatching(ctx context.Context, match func(*job.Job) bool) {
	c.mu.Lock()
	var hits []*job.Job
	for _, j := range c.running {
		if j != nil && match(j) {
			hits = append(hits, j)
		}
	}
	c.mu.Unlock()

	for _, j := range hits {
		c.stopRunningJob(ctx, j, false)
	}
	if len(hits) > 0 {
		c.reloadJobs()
	}
}

// disableJobsMatching cancels queued and stops running jobs matching
// match; used when a PR is closed or a ref is deleted.
func (c *Core) disableJobsMatching(ctx context.Context, match func(*job.Job) bool) {
	c.cancelQueuedJobsMatching(ctx, match)
	c.stopRunningJobsMatching(ctx, match)
}

func matchPR(number int) func(*job.Job) bool {
	return func(j *job.Job) bool { return j.MatchesPR(number) }
}

func matchRef(ref string) func(*job.Job) bool {
	return func(j *job.Job) bool { return j.MatchesRef(ref) }
}
