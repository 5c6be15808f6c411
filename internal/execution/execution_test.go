package execution

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kamino-ci/kamino/internal/job"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "build.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecuteStreamsOutputAndPasses(t *testing.T) {
	script := writeScript(t, "echo line one\necho line two\nexit 0\n")
	a := NewAdapter(script, t.TempDir())

	var mu sync.Mutex
	var lines []string
	j := &job.Job{UID: "job-1", Commit: job.Commit{SHA: "sha1"}}

	err := a.Execute(context.Background(), j, func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if j.Result != job.ResultPassed {
		t.Fatalf("Result = %v, want passed", j.Result)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %v, want 2 entries", lines)
	}
}

func TestExecuteSetsErroredOnNonZeroExit(t *testing.T) {
	script := writeScript(t, "echo failing\nexit 1\n")
	a := NewAdapter(script, t.TempDir())

	j := &job.Job{UID: "job-2", Commit: job.Commit{SHA: "sha2"}}
	err := a.Execute(context.Background(), j, func(line string) {})
	if err != nil {
		t.Fatalf("Execute() = %v, want nil (exit status is reported via Result)", err)
	}
	if j.Result != job.ResultErrored {
		t.Fatalf("Result = %v, want errored", j.Result)
	}
}

func TestExecuteReportsStoppedWhenCanceled(t *testing.T) {
	script := writeScript(t, "echo one\nexit 0\n")
	a := NewAdapter(script, t.TempDir())

	j := &job.Job{UID: "job-3", Commit: job.Commit{SHA: "sha3"}, Canceled: true}
	err := a.Execute(context.Background(), j, func(line string) {})
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if j.Result != job.ResultStopped {
		t.Fatalf("Result = %v, want stopped when job was already marked canceled", j.Result)
	}
}

func TestStopSignalsRunningProcess(t *testing.T) {
	script := writeScript(t, "trap 'exit 0' TERM\nsleep 5 &\nwait $!\n")
	a := NewAdapter(script, t.TempDir())

	j := &job.Job{UID: "job-4", Commit: job.Commit{SHA: "sha4"}}

	done := make(chan error, 1)
	go func() {
		done <- a.Execute(context.Background(), j, func(line string) {})
	}()

	time.Sleep(100 * time.Millisecond)
	if err := a.Stop("job-4"); err != nil {
		t.Fatalf("Stop() = %v", err)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Execute did not return after Stop")
	}
}

func TestStopOnUnknownUIDIsNoop(t *testing.T) {
	a := NewAdapter("/bin/true", t.TempDir())
	if err := a.Stop("never-started"); err != nil {
		t.Fatalf("Stop() = %v, want nil for unknown uid", err)
	}
}

func TestRemoveDirDeletesTree(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "job-dir")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	a := NewAdapter("/bin/true", dir)
	if err := a.RemoveDir(sub); err != nil {
		t.Fatalf("RemoveDir() = %v", err)
	}
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Fatal("directory should have been removed")
	}
}

func TestRemoveDirEmptyPathIsNoop(t *testing.T) {
	a := NewAdapter("/bin/true", t.TempDir())
	if err := a.RemoveDir(""); err != nil {
		t.Fatalf("RemoveDir(\"\") = %v, want nil", err)
	}
}
