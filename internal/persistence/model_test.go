package persistence

import (
	"testing"
	"time"

	"github.com/kamino-ci/kamino/internal/job"
)

func TestToRecordAndBackRoundTripsPRJob(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	stop := time.Now()

	j := &job.Job{
		UID:         "pr-9-sha1",
		Commit:      job.Commit{SHA: "sha1", Message: "fix bug", Author: "octocat"},
		Trigger:     job.NewPRTrigger(job.PullRequestInfo{Number: 9, Title: "fix bug", User: "octocat"}),
		FastTracked: true,
		Status:      job.Status{Phase: job.PhaseFinished, Line: "build passed"},
		Result:      job.ResultPassed,
		Canceled:    false,
		StartTime:   start,
		StopTime:    stop,
	}

	rec := toRecord(j)
	if rec.UID != j.UID || rec.PRNumber != 9 || rec.PRTitle != "fix bug" || rec.PRUser != "octocat" {
		t.Fatalf("toRecord() PR fields mismatch: %+v", rec)
	}
	if rec.RefName != "" {
		t.Fatalf("RefName = %q, want empty for a PR-triggered job", rec.RefName)
	}

	back := rec.toJob()
	if back.UID != j.UID {
		t.Fatalf("UID = %q, want %q", back.UID, j.UID)
	}
	n, ok := back.PRNumber()
	if !ok || n != 9 {
		t.Fatalf("PRNumber() = %d, %v, want 9, true", n, ok)
	}
	if back.Result != job.ResultPassed {
		t.Fatalf("Result = %v, want passed", back.Result)
	}
}

func TestToRecordAndBackRoundTripsRefJob(t *testing.T) {
	j := &job.Job{
		UID:     "ref-main-sha2",
		Commit:  job.Commit{SHA: "sha2"},
		Trigger: job.NewRefTrigger("refs/heads/main"),
		Result:  job.ResultErrored,
	}

	rec := toRecord(j)
	if rec.RefName != "refs/heads/main" {
		t.Fatalf("RefName = %q, want refs/heads/main", rec.RefName)
	}
	if rec.PRNumber != 0 {
		t.Fatalf("PRNumber = %d, want 0 for a ref-triggered job", rec.PRNumber)
	}

	back := rec.toJob()
	ref, ok := back.RefName()
	if !ok || ref != "refs/heads/main" {
		t.Fatalf("RefName() = %q, %v, want refs/heads/main, true", ref, ok)
	}
	if back.Result != job.ResultErrored {
		t.Fatalf("Result = %v, want errored", back.Result)
	}
}
