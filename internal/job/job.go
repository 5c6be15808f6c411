// Package job defines the data model shared by the dispatch core and
// its adapters: jobs, commits, triggers, and the per-commit build
// configuration.
package job

import "time"

// Phase is the monotonic status of a Job: queued -> working -> finished.
type Phase string

const (
	PhaseQueued   Phase = "queued"
	PhaseWorking  Phase = "working"
	PhaseFinished Phase = "finished"
)

// Result is the terminal outcome of a Job's execution.
type Result string

const (
	ResultUnset   Result = ""
	ResultPassed  Result = "passed"
	ResultErrored Result = "errored"
	ResultStopped Result = "stopped"
)

// Status is a Job's mutable progress record.
type Status struct {
	Phase Phase  `json:"phase"`
	Line  string `json:"line,omitempty"`
}

// Commit is the head-commit snapshot fetched from the hosting adapter.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Author  string `json:"author"`
}

// PullRequestInfo snapshots the pull request a PR-triggered Job belongs to.
type PullRequestInfo struct {
	Number       int      `json:"number"`
	Title        string   `json:"title"`
	User         string   `json:"user"`
	URL          string   `json:"url"`
	MergeCommit  string   `json:"merge_commit"`
	BaseRepo     string   `json:"base_repo"`
	BaseBranch   string   `json:"base_branch"`
	BaseCommit   string   `json:"base_commit"`
	BaseFullName string   `json:"base_full_name"`
	Mergeable    bool     `json:"mergeable"`
	Labels       []string `json:"labels"`
}

// Job is the unit of work owned by the dispatch core.
type Job struct {
	UID         string
	Commit      Commit
	Trigger     Trigger
	Config      BuildConfig
	FastTracked bool
	Status      Status
	Result      Result
	Canceled    bool
	StartTime   time.Time
	StopTime    time.Time
}

// Runtime returns the wall-clock duration of a finished or running job.
func (j *Job) Runtime() time.Duration {
	if j.StartTime.IsZero() {
		return 0
	}
	if j.StopTime.IsZero() {
		return time.Since(j.StartTime)
	}
	return j.StopTime.Sub(j.StartTime)
}

// PRNumber returns the job's pull-request number and true if the job is
// PR-triggered.
func (j *Job) PRNumber() (int, bool) {
	if j.Trigger.PR == nil {
		return 0, false
	}
	return j.Trigger.PR.Number, true
}

// RefName returns the job's ref name and true if the job is push-triggered.
func (j *Job) RefName() (string, bool) {
	if j.Trigger.Ref == "" {
		return "", false
	}
	return j.Trigger.Ref, true
}

// MatchesPR reports whether the job was triggered by the given PR number.
func (j *Job) MatchesPR(number int) bool {
	n, ok := j.PRNumber()
	return ok && n == number
}

// MatchesRef reports whether the job was triggered by the given ref name.
func (j *Job) MatchesRef(ref string) bool {
	r, ok := j.RefName()
	return ok && r == ref
}
