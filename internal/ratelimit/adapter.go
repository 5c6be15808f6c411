package ratelimit

import (
	"context"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/job"
)

// Adapter wraps a dispatch.HostingAdapter, acquiring a token from a
// Limiter before each call and releasing it once the call returns.
type Adapter struct {
	inner   dispatch.HostingAdapter
	limiter *Limiter
}

// Wrap builds a rate-limited HostingAdapter around inner.
func Wrap(inner dispatch.HostingAdapter, limiter *Limiter) *Adapter {
	return &Adapter{inner: inner, limiter: limiter}
}

var _ dispatch.HostingAdapter = (*Adapter)(nil)

func (a *Adapter) FetchCommitInfo(ctx context.Context, sha string) (*job.Commit, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	defer a.limiter.Release()
	return a.inner.FetchCommitInfo(ctx, sha)
}

func (a *Adapter) FetchBuildConfig(ctx context.Context, sha string) (job.BuildConfig, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return job.BuildConfig{}, err
	}
	defer a.limiter.Release()
	return a.inner.FetchBuildConfig(ctx, sha)
}

func (a *Adapter) SetCommitStatus(ctx context.Context, sha string, status dispatch.CommitStatus) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	defer a.limiter.Release()
	return a.inner.SetCommitStatus(ctx, sha, status)
}

func (a *Adapter) CommentOnPR(ctx context.Context, j *job.Job) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	defer a.limiter.Release()
	return a.inner.CommentOnPR(ctx, j)
}
