// Package dispatch implements the dispatch core described by the
// project's specification: it owns the lifetime of every in-flight
// build job, enforces queueing and priority policy, coordinates
// cancellation, executes jobs under a bounded worker pool, and drives
// status callbacks in lock-step with internal state transitions.
//
// All mutation of waiting/running state happens under a single mutex,
// matching the cooperative single-event-loop model the core was
// designed around (spec.md §5): workers, the HTTP façade, and the
// asynq consumer all call into the same Core concurrently, so the
// mutex is what keeps WaitingSet/RunningSet/the queues consistent.
package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kamino-ci/kamino/internal/job"
)

// queueCapacity bounds the buffered channels backing the normal and
// fast-track lanes. Queued jobs are ephemeral (spec.md Non-goals), so a
// generous static bound is preferable to an unbounded queue that could
// grow without limit across a long outage of the execution adapter.
const queueCapacity = 4096

// Config holds the process-wide options spec.md §6 names.
type Config struct {
	NumWorkers     int
	CancelOnUpdate bool
	BaseURL        string
	WorkDir        string
	ReadyLabel     string
}

// Core is the dispatch core.
type Core struct {
	cfg      Config
	hosting  HostingAdapter
	exec     ExecutionAdapter
	persist  PersistenceAdapter
	notifier Notifier
	history  BuildHistory

	mu            sync.Mutex
	waiting       map[string]*job.Job
	running       []*job.Job
	jobsProcessed []int

	normalCh    chan *job.Job
	fastTrackCh chan *job.Job

	wg           sync.WaitGroup
	shutdownOnce sync.Once
	stopWorkers  chan struct{}
}

// HostingAdapter is the external collaborator that retrieves commit
// metadata, posts commit statuses, and writes PR comments (spec.md §6).
type HostingAdapter interface {
	FetchCommitInfo(ctx context.Context, sha string) (*job.Commit, error)
	FetchBuildConfig(ctx context.Context, sha string) (job.BuildConfig, error)
	SetCommitStatus(ctx context.Context, sha string, status CommitStatus) error
	CommentOnPR(ctx context.Context, j *job.Job) error
}

// CommitStatus is the payload posted to the hosting adapter's
// setCommitStatus operation.
type CommitStatus struct {
	State       string // pending | success | failure
	Context     string
	Description string
	TargetURL   string
}

// ExecutionAdapter runs a job's build and reports progress (spec.md §6).
// Execute mutates j.Result before returning; a non-nil error indicates
// an unexpected adapter failure rather than a build failure, and the
// worker maps it to ResultErrored.
type ExecutionAdapter interface {
	Execute(ctx context.Context, j *job.Job, notify func(line string)) error
	Stop(uid string) error
	RemoveDir(path string) error
}

// PersistenceAdapter stores finished jobs (spec.md §6) and worker
// liveness heartbeats (SPEC_FULL.md §7).
type PersistenceAdapter interface {
	InsertJob(ctx context.Context, j *job.Job) error
	FindJob(ctx context.Context, uid string) (*job.Job, error)
	FindJobs(ctx context.Context, q job.Query) ([]*job.Job, error)
	CountJobs(ctx context.Context, q job.Query) (int, error)
	DeleteJobs(ctx context.Context, q job.Query) (int, error)
	RecordHeartbeat(ctx context.Context, workerID string, jobsProcessed int) error
}

// Notifier broadcasts an observer-channel message (spec.md §4.7).
type Notifier interface {
	Notify(msg any)
}

// BuildHistory supplies a PR's prior build outcome so the scheduler can
// apply the fast-track heuristic resolved in SPEC_FULL.md §8.1. It is
// optional: a nil BuildHistory disables the heuristic without affecting
// the label-based fast-track path.
type BuildHistory interface {
	LastResult(ctx context.Context, prNumber int) (job.Result, bool)
}

// New creates a dispatch core. hosting, exec, and persist must be
// non-nil; notifier and history may be nil.
func New(cfg Config, hosting HostingAdapter, exec ExecutionAdapter, persist PersistenceAdapter, notifier Notifier, history BuildHistory) *Core {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	return &Core{
		cfg:           cfg,
		hosting:       hosting,
		exec:          exec,
		persist:       persist,
		notifier:      notifier,
		history:       history,
		waiting:       make(map[string]*job.Job),
		running:       make([]*job.Job, cfg.NumWorkers),
		jobsProcessed: make([]int, cfg.NumWorkers),
		normalCh:      make(chan *job.Job, queueCapacity),
		fastTrackCh:   make(chan *job.Job, queueCapacity),
		stopWorkers:   make(chan struct{}),
	}
}

// Start launches exactly cfg.NumWorkers worker goroutines.
func (c *Core) Start(ctx context.Context) {
	log.Info().Int("workers", c.cfg.NumWorkers).Msg("dispatch core starting worker pool")
	for i := 0; i < c.cfg.NumWorkers; i++ {
		c.wg.Add(1)
		go c.workerLoop(ctx, i)
	}
}

// Shutdown marks every queued job canceled, stops every running job,
// closes the job channels so workers exit cleanly, and waits for them.
func (c *Core) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		log.Info().Msg("dispatch core shutting down")

		c.mu.Lock()
		waiting := make([]*job.Job, 0, len(c.waiting))
		for _, j := range c.waiting {
			waiting = append(waiting, j)
		}
		running := make([]*job.Job, 0, len(c.running))
		for _, j := range c.running {
			if j != nil {
				running = append(running, j)
			}
		}
		c.mu.Unlock()

		for _, j := range waiting {
			c.cancelQueued(ctx, j, false)
		}
		for _, j := range running {
			c.stopRunningJob(ctx, j, false)
		}

		close(c.stopWorkers)
		close(c.normalCh)
		close(c.fastTrackCh)
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("dispatch core shutdown timed out waiting for workers")
	}
}

func (c *Core) notify(msg any) {
	if c.notifier != nil {
		c.notifier.Notify(msg)
	}
}

func (c *Core) reloadJobs() {
	c.notify(map[string]any{"cmd": "reload"})
}
