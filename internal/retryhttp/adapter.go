package retryhttp

import (
	"context"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/job"
)

// Adapter wraps a dispatch.HostingAdapter, retrying each call with the
// enclosed Retrier.
type Adapter struct {
	inner   dispatch.HostingAdapter
	retrier *Retrier
}

// Wrap builds a retrying HostingAdapter around inner.
func Wrap(inner dispatch.HostingAdapter, retrier *Retrier) *Adapter {
	return &Adapter{inner: inner, retrier: retrier}
}

var _ dispatch.HostingAdapter = (*Adapter)(nil)

func (a *Adapter) FetchCommitInfo(ctx context.Context, sha string) (*job.Commit, error) {
	var commit *job.Commit
	err := a.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		commit, err = a.inner.FetchCommitInfo(ctx, sha)
		return err
	})
	return commit, err
}

func (a *Adapter) FetchBuildConfig(ctx context.Context, sha string) (job.BuildConfig, error) {
	var cfg job.BuildConfig
	err := a.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		cfg, err = a.inner.FetchBuildConfig(ctx, sha)
		return err
	})
	return cfg, err
}

func (a *Adapter) SetCommitStatus(ctx context.Context, sha string, status dispatch.CommitStatus) error {
	return a.retrier.Do(ctx, func(ctx context.Context) error {
		return a.inner.SetCommitStatus(ctx, sha, status)
	})
}

func (a *Adapter) CommentOnPR(ctx context.Context, j *job.Job) error {
	return a.retrier.Do(ctx, func(ctx context.Context) error {
		return a.inner.CommentOnPR(ctx, j)
	})
}
