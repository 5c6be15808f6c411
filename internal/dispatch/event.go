package dispatch

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/job"
)

// allowedPullRequestActions mirrors the original dispatcher's
// ALLOWED_ACTIONS list: only these PR actions can ever produce a build.
var allowedPullRequestActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
	"labeled":     true,
	"unlabeled":   true,
	"closed":      true,
	"created":     true,
}

// PullRequestEvent is the subset of a GitHub pull_request webhook
// payload the event handler acts on.
type PullRequestEvent struct {
	Action string
	Label  string // only set for labeled/unlabeled actions
	PR     job.PullRequestInfo
	HeadSHA string
	Draft   bool
}

// PushEvent is the subset of a GitHub push webhook payload the event
// handler acts on.
type PushEvent struct {
	Ref    string
	After  string // all-zero SHA means the ref was deleted
	Pusher string
}

var zeroSHA = regexp.MustCompile(`^0+$`)

// HandlePullRequestEvent applies spec.md §4.1's policy to an inbound PR
// webhook: filter disallowed actions, handle closed PRs by disabling
// their jobs, gate on the ready label when one is configured, and
// otherwise schedule a new job — canceling any job already in flight
// for the same PR first when CancelOnUpdate is set.
func (c *Core) HandlePullRequestEvent(ctx context.Context, evt PullRequestEvent) {
	if !allowedPullRequestActions[evt.Action] {
		return
	}

	if evt.Action == "closed" {
		c.disableJobsMatching(ctx, matchPR(evt.PR.Number))
		return
	}

	if c.cfg.ReadyLabel != "" {
		switch evt.Action {
		case "labeled":
			if evt.Label != c.cfg.ReadyLabel {
				c.updateQueuedPRLabel(evt.PR.Number, evt.Label, true)
				return
			}
		case "unlabeled":
			if evt.Label == c.cfg.ReadyLabel {
				c.disableJobsMatching(ctx, matchPR(evt.PR.Number))
			} else {
				c.updateQueuedPRLabel(evt.PR.Number, evt.Label, false)
			}
			return
		default:
			if !hasLabel(evt.PR.Labels, c.cfg.ReadyLabel) {
				return
			}
		}
	}

	if c.cfg.CancelOnUpdate {
		c.cancelQueuedJobsMatching(ctx, matchPR(evt.PR.Number))
		c.stopRunningJobsMatching(ctx, matchPR(evt.PR.Number))
	}

	c.Schedule(ctx, job.NewPRTrigger(evt.PR), evt.HeadSHA, evt.Label == c.cfg.ReadyLabel && c.cfg.ReadyLabel != "")
}

// HandlePushEvent applies spec.md §4.1's policy to an inbound push
// webhook. A push to the zero SHA means the ref was deleted, which
// disables in-flight jobs for that ref instead of scheduling one.
func (c *Core) HandlePushEvent(ctx context.Context, evt PushEvent) {
	if zeroSHA.MatchString(evt.After) {
		c.disableJobsMatching(ctx, matchRef(evt.Ref))
		return
	}

	if c.cfg.CancelOnUpdate {
		c.cancelQueuedJobsMatching(ctx, matchRef(evt.Ref))
		c.stopRunningJobsMatching(ctx, matchRef(evt.Ref))
	}

	c.Schedule(ctx, job.NewRefTrigger(evt.Ref), evt.After, false)
}

// Schedule fetches commit metadata and build config via the hosting
// adapter, applies skip-keyword and fast-track policy, builds a Job,
// and enqueues it. hintFastTrack carries a caller-known reason a job
// should fast-track (e.g. it just received the ready label) in
// addition to the config-driven label and build-history heuristics.
func (c *Core) Schedule(ctx context.Context, trigger job.Trigger, sha string, hintFastTrack bool) {
	if err := trigger.Validate(); err != nil {
		log.Error().Err(err).Msg("refusing to schedule invalid trigger")
		return
	}

	commit, err := c.hosting.FetchCommitInfo(ctx, sha)
	if err != nil || commit == nil {
		log.Warn().Err(err).Str("sha", sha).Msg("could not fetch commit, dropping job")
		return
	}

	cfg, err := c.hosting.FetchBuildConfig(ctx, sha)
	if err != nil {
		log.Warn().Err(err).Str("sha", sha).Msg("could not fetch build config, dropping job")
		return
	}

	if matchesSkipKeyword(commit.Message, cfg.Commit.SkipKeywords) {
		log.Info().Str("sha", sha).Msg("commit message matched a skip keyword, not scheduling")
		return
	}

	j := &job.Job{
		UID:         uuid.NewString(),
		Commit:      *commit,
		Trigger:     trigger,
		Config:      cfg,
		FastTracked: hintFastTrack || c.resolveFastTrack(ctx, trigger, cfg),
		Status:      job.Status{Phase: job.PhaseQueued},
	}

	c.mu.Lock()
	c.enqueueLocked(j)
	c.mu.Unlock()

	log.Info().Str("uid", j.UID).Bool("fast_tracked", j.FastTracked).Msg("job scheduled")

	if err := c.hosting.SetCommitStatus(ctx, j.Commit.SHA, CommitStatus{
		State:       "pending",
		Context:     "kamino-ci",
		Description: "the build has been queued",
		TargetURL:   c.jobURL(j),
	}); err != nil {
		log.Warn().Err(err).Str("uid", j.UID).Msg("failed to set queued commit status")
	}

	c.reloadJobs()
}

// updateQueuedPRLabel keeps a queued job's label snapshot in sync with a
// labeled/unlabeled webhook that didn't touch the ready label itself:
// spec.md §4.1 steps 7-8 still want the job's PR.Labels to reflect
// reality in case the ready label interaction is later re-evaluated
// against it.
func (c *Core) updateQueuedPRLabel(prNumber int, label string, add bool) {
	if label == "" {
		return
	}

	c.mu.Lock()
	var touched bool
	for _, j := range c.waiting {
		if !j.MatchesPR(prNumber) || j.Trigger.PR == nil {
			continue
		}
		if add {
			if !hasLabel(j.Trigger.PR.Labels, label) {
				j.Trigger.PR.Labels = append(j.Trigger.PR.Labels, label)
				touched = true
			}
			continue
		}
		kept := j.Trigger.PR.Labels[:0]
		for _, l := range j.Trigger.PR.Labels {
			if !strings.EqualFold(l, label) {
				kept = append(kept, l)
			}
		}
		if len(kept) != len(j.Trigger.PR.Labels) {
			touched = true
		}
		j.Trigger.PR.Labels = kept
	}
	c.mu.Unlock()

	if touched {
		c.reloadJobs()
	}
}

// resolveFastTrack implements the fast-track heuristic resolved in
// SPEC_FULL.md §8.1: a job fast-tracks if its PR carries the
// configured fast-track label, or its PR's previous build errored.
func (c *Core) resolveFastTrack(ctx context.Context, trigger job.Trigger, cfg job.BuildConfig) bool {
	if trigger.PR == nil {
		return false
	}
	if cfg.PR.FastTrackLabel != "" && hasLabel(trigger.PR.Labels, cfg.PR.FastTrackLabel) {
		return true
	}
	if c.history == nil {
		return false
	}
	last, ok := c.history.LastResult(ctx, trigger.PR.Number)
	return ok && last == job.ResultErrored
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, want) {
			return true
		}
	}
	return false
}

func matchesSkipKeyword(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
