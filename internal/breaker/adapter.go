package breaker

import (
	"context"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/job"
)

// Adapter wraps a dispatch.HostingAdapter, routing every call through a
// Breaker so a string of failures trips it for everyone sharing it.
type Adapter struct {
	inner dispatch.HostingAdapter
	b     *Breaker
}

// Wrap builds a circuit-broken HostingAdapter around inner.
func Wrap(inner dispatch.HostingAdapter, b *Breaker) *Adapter {
	return &Adapter{inner: inner, b: b}
}

var _ dispatch.HostingAdapter = (*Adapter)(nil)

func (a *Adapter) FetchCommitInfo(ctx context.Context, sha string) (*job.Commit, error) {
	var commit *job.Commit
	err := a.b.Execute(func() error {
		var err error
		commit, err = a.inner.FetchCommitInfo(ctx, sha)
		return err
	})
	return commit, err
}

func (a *Adapter) FetchBuildConfig(ctx context.Context, sha string) (job.BuildConfig, error) {
	var cfg job.BuildConfig
	err := a.b.Execute(func() error {
		var err error
		cfg, err = a.inner.FetchBuildConfig(ctx, sha)
		return err
	})
	return cfg, err
}

func (a *Adapter) SetCommitStatus(ctx context.Context, sha string, status dispatch.CommitStatus) error {
	return a.b.Execute(func() error {
		return a.inner.SetCommitStatus(ctx, sha, status)
	})
}

func (a *Adapter) CommentOnPR(ctx context.Context, j *job.Job) error {
	return a.b.Execute(func() error {
		return a.inner.CommentOnPR(ctx, j)
	})
}
