package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/job"
)

// workerLoop is one slot of the bounded worker pool. Each worker owns
// running[id] for its entire lifetime: nil while idle, the job it is
// building otherwise. Dequeue discipline favors the fast-track lane:
// drain it opportunistically without blocking, and only block on both
// lanes together once it is empty, so a fast-track arrival during a
// blocking wait is still picked up ahead of anything already queued
// normally.
func (c *Core) workerLoop(ctx context.Context, id int) {
	defer c.wg.Done()
	for {
		j, ok := c.nextJob()
		if !ok {
			return
		}
		c.runJob(ctx, id, j)
	}
}

func (c *Core) nextJob() (*job.Job, bool) {
	select {
	case j, ok := <-c.fastTrackCh:
		if ok {
			return j, true
		}
	default:
	}

	select {
	case j, ok := <-c.fastTrackCh:
		return j, ok
	case j, ok := <-c.normalCh:
		return j, ok
	case <-c.stopWorkers:
		return nil, false
	}
}

func (c *Core) runJob(ctx context.Context, slot int, j *job.Job) {
	c.mu.Lock()
	_, stillWaiting := c.waiting[j.UID]
	if stillWaiting {
		delete(c.waiting, j.UID)
	}
	alreadyCanceled := j.Canceled
	c.mu.Unlock()

	if !stillWaiting || alreadyCanceled {
		// Canceled between enqueue and dequeue; cancelQueued already
		// ran its finalize step for the stillWaiting==false case, and a
		// job canceled in place still needs one here.
		if stillWaiting {
			c.finalize(ctx, j)
		}
		return
	}

	c.prepare(ctx, slot, j)

	notify := func(line string) {
		c.mu.Lock()
		j.Status.Line = line
		c.mu.Unlock()
		c.notify(map[string]any{"cmd": "status", "uid": j.UID, "status": j.Status})
	}

	if err := c.exec.Execute(ctx, j, notify); err != nil {
		log.Error().Err(err).Str("uid", j.UID).Msg("execution adapter failed")
		if j.Result == job.ResultUnset {
			j.Result = job.ResultErrored
		}
	}

	c.mu.Lock()
	c.running[slot] = nil
	c.jobsProcessed[slot]++
	processed := c.jobsProcessed[slot]
	c.mu.Unlock()

	c.finalize(ctx, j)
	c.heartbeat(ctx, slot, processed)
}

func (c *Core) heartbeat(ctx context.Context, slot, processed int) {
	if c.persist == nil {
		return
	}
	workerID := fmt.Sprintf("worker-%d", slot)
	if err := c.persist.RecordHeartbeat(ctx, workerID, processed); err != nil {
		log.Warn().Err(err).Str("worker", workerID).Msg("failed to record heartbeat")
	}
}

// prepare transitions a job from queued to working: it claims the
// running slot, stamps StartTime, posts a pending commit status, and
// broadcasts the transition.
func (c *Core) prepare(ctx context.Context, slot int, j *job.Job) {
	c.mu.Lock()
	j.Status.Phase = job.PhaseWorking
	j.StartTime = time.Now()
	c.running[slot] = j
	c.mu.Unlock()

	log.Info().Str("uid", j.UID).Msg("job started")

	if err := c.hosting.SetCommitStatus(ctx, j.Commit.SHA, CommitStatus{
		State:       "pending",
		Context:     "kamino-ci",
		Description: "build in progress",
		TargetURL:   c.jobURL(j),
	}); err != nil {
		log.Warn().Err(err).Str("uid", j.UID).Msg("failed to set pending commit status")
	}

	c.notify(map[string]any{"cmd": "status", "uid": j.UID, "status": j.Status})
}

// finalize transitions a job to finished: it stamps StopTime, resolves
// a canceled-but-never-started job's Result to stopped, and, for jobs
// that actually ran to a terminal outcome, posts the terminal commit
// status, persists the job, and comments on its PR if configured to.
// Stopped jobs skip all three: spec.md §4.5 step 4 and cancelQueued/
// stopRunningJob already posted their own pending commit status, and a
// canceled-before-it-ran job is intentionally never persisted. This is
// the single place every job passes through exactly once,
// queued-and-canceled or run-to-completion alike.
func (c *Core) finalize(ctx context.Context, j *job.Job) {
	c.mu.Lock()
	j.Status.Phase = job.PhaseFinished
	if j.StopTime.IsZero() {
		j.StopTime = time.Now()
	}
	if j.Result == job.ResultUnset {
		j.Result = job.ResultStopped
	}
	c.mu.Unlock()

	log.Info().Str("uid", j.UID).Str("result", string(j.Result)).Msg("job finished")

	if j.Result != job.ResultStopped {
		state, description := commitStatusFor(j.Result)
		if err := c.hosting.SetCommitStatus(ctx, j.Commit.SHA, CommitStatus{
			State:       state,
			Context:     "kamino-ci",
			Description: description,
			TargetURL:   c.jobURL(j),
		}); err != nil {
			log.Warn().Err(err).Str("uid", j.UID).Msg("failed to set final commit status")
		}

		if j.Config.PR.EnableComments {
			if _, ok := j.PRNumber(); ok {
				if err := c.hosting.CommentOnPR(ctx, j); err != nil {
					log.Warn().Err(err).Str("uid", j.UID).Msg("failed to comment on PR")
				}
			}
		}

		if c.persist != nil {
			if err := c.persist.InsertJob(ctx, j); err != nil {
				log.Error().Err(err).Str("uid", j.UID).Msg("failed to persist finished job")
			}
		}
	}

	if c.exec != nil && c.cfg.WorkDir != "" {
		if err := c.exec.RemoveDir(c.jobWorkDir(j)); err != nil {
			log.Warn().Err(err).Str("uid", j.UID).Msg("failed to remove job work dir")
		}
	}

	c.notify(map[string]any{"cmd": "status", "uid": j.UID, "status": j.Status, "result": j.Result})
}

func commitStatusFor(result job.Result) (state, description string) {
	switch result {
	case job.ResultPassed:
		return "success", "build passed"
	case job.ResultErrored:
		return "failure", "build failed"
	case job.ResultStopped:
		return "failure", "build was stopped"
	default:
		return "failure", "build ended in an unknown state"
	}
}

func (c *Core) jobURL(j *job.Job) string {
	if c.cfg.BaseURL == "" {
		return ""
	}
	return c.cfg.BaseURL + "/details/" + j.UID
}

func (c *Core) jobWorkDir(j *job.Job) string {
	return c.cfg.WorkDir + "/" + j.UID
}
