package persistence

import (
	"time"

	"github.com/kamino-ci/kamino/internal/job"
)

// JobRecord is the gorm row a finished job is flattened into. UID is
// the primary key so inserting the same job twice upserts rather than
// duplicates; a restarted job gets a new UID and its own row.
type JobRecord struct {
	UID string `gorm:"primarykey"`

	CommitSHA     string `gorm:"index"`
	CommitMessage string `gorm:"type:text"`
	CommitAuthor  string

	PRNumber   int    `gorm:"index"`
	PRTitle    string
	PRUser     string
	RefName    string `gorm:"index"`

	FastTracked bool
	Phase       string
	ResultLine  string `gorm:"type:text"`
	Result      string `gorm:"index"`
	Canceled    bool

	StartTime time.Time `gorm:"index"`
	StopTime  time.Time `gorm:"index"`
}

// WorkerHeartbeat is a liveness row each dispatch worker upserts after
// every job it finishes, so pool health is visible without reading logs. It never
// carries build output or any other per-job data.
type WorkerHeartbeat struct {
	WorkerID      string `gorm:"primarykey"`
	JobsProcessed int
	LastActive    time.Time
}

func toRecord(j *job.Job) JobRecord {
	rec := JobRecord{
		UID:           j.UID,
		CommitSHA:     j.Commit.SHA,
		CommitMessage: j.Commit.Message,
		CommitAuthor:  j.Commit.Author,
		FastTracked:   j.FastTracked,
		Phase:         string(j.Status.Phase),
		ResultLine:    j.Status.Line,
		Result:        string(j.Result),
		Canceled:      j.Canceled,
		StartTime:     j.StartTime,
		StopTime:      j.StopTime,
	}
	if pr := j.Trigger.PR; pr != nil {
		rec.PRNumber = pr.Number
		rec.PRTitle = pr.Title
		rec.PRUser = pr.User
	}
	if ref, ok := j.RefName(); ok {
		rec.RefName = ref
	}
	return rec
}

func (r JobRecord) toJob() *job.Job {
	j := &job.Job{
		UID:         r.UID,
		Commit:      job.Commit{SHA: r.CommitSHA, Message: r.CommitMessage, Author: r.CommitAuthor},
		FastTracked: r.FastTracked,
		Status:      job.Status{Phase: job.Phase(r.Phase), Line: r.ResultLine},
		Result:      job.Result(r.Result),
		Canceled:    r.Canceled,
		StartTime:   r.StartTime,
		StopTime:    r.StopTime,
	}
	if r.PRNumber != 0 {
		j.Trigger = job.NewPRTrigger(job.PullRequestInfo{Number: r.PRNumber, Title: r.PRTitle, User: r.PRUser})
	} else {
		j.Trigger = job.NewRefTrigger(r.RefName)
	}
	return j
}
