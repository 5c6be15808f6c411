package githubhost

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v60/github"
	"gopkg.in/yaml.v3"

	"github.com/kamino-ci/kamino/internal/dispatch"
	"github.com/kamino-ci/kamino/internal/job"
)

// configPath is the per-repo build configuration file location.
const configPath = ".kamino.yml"

// Adapter implements dispatch.HostingAdapter against a single GitHub
// owner/repo pair. One Adapter is constructed per repository Kamino is
// configured to watch.
type Adapter struct {
	client *Client
	owner  string
	repo   string
}

// NewAdapter builds a HostingAdapter for owner/repo.
func NewAdapter(client *Client, owner, repo string) *Adapter {
	return &Adapter{client: client, owner: owner, repo: repo}
}

var _ dispatch.HostingAdapter = (*Adapter)(nil)

// FetchCommitInfo retrieves a commit's message and author. A 404 from
// GitHub is reported as (nil, nil): the commit is simply missing, not
// an adapter failure, matching spec.md's "treat like any other
// missing-commit failure" resolution for config-fetch errors.
func (a *Adapter) FetchCommitInfo(ctx context.Context, sha string) (*job.Commit, error) {
	gh, err := a.client.installationClient(ctx, a.owner, a.repo)
	if err != nil {
		return nil, err
	}

	commit, resp, err := gh.Repositories.GetCommit(ctx, a.owner, a.repo, sha, nil)
	if resp != nil && resp.StatusCode == 404 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commit %s: %w", sha, err)
	}

	author := ""
	message := ""
	if commit.Commit != nil {
		message = commit.Commit.GetMessage()
		if commit.Commit.Author != nil {
			author = commit.Commit.Author.GetName()
		}
	}
	return &job.Commit{SHA: sha, Message: message, Author: author}, nil
}

// FetchBuildConfig retrieves and parses .kamino.yml at sha, falling
// back to job.DefaultConfig when the repo carries none.
func (a *Adapter) FetchBuildConfig(ctx context.Context, sha string) (job.BuildConfig, error) {
	gh, err := a.client.installationClient(ctx, a.owner, a.repo)
	if err != nil {
		return job.BuildConfig{}, err
	}

	content, _, resp, err := gh.Repositories.GetContents(ctx, a.owner, a.repo, configPath, &github.RepositoryContentGetOptions{Ref: sha})
	if resp != nil && resp.StatusCode == 404 {
		return job.DefaultConfig(), nil
	}
	if err != nil {
		return job.BuildConfig{}, fmt.Errorf("get %s at %s: %w", configPath, sha, err)
	}

	raw, err := decodeContent(content)
	if err != nil {
		return job.BuildConfig{}, err
	}

	cfg := job.DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return job.BuildConfig{}, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return cfg, nil
}

func decodeContent(content *github.RepositoryContent) ([]byte, error) {
	if content.GetEncoding() == "base64" {
		raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.GetContent(), "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		return raw, nil
	}
	return []byte(content.GetContent()), nil
}

// SetCommitStatus posts a commit status to the target SHA.
func (a *Adapter) SetCommitStatus(ctx context.Context, sha string, status dispatch.CommitStatus) error {
	gh, err := a.client.installationClient(ctx, a.owner, a.repo)
	if err != nil {
		return err
	}

	repoStatus := &github.RepoStatus{
		State:       github.String(status.State),
		Context:     github.String(status.Context),
		Description: github.String(status.Description),
	}
	if status.TargetURL != "" {
		repoStatus.TargetURL = github.String(status.TargetURL)
	}

	_, _, err = gh.Repositories.CreateStatus(ctx, a.owner, a.repo, sha, repoStatus)
	if err != nil {
		return fmt.Errorf("create status on %s: %w", sha, err)
	}
	return nil
}

// CommentOnPR posts a single summary comment describing a finished
// job's outcome.
func (a *Adapter) CommentOnPR(ctx context.Context, j *job.Job) error {
	prNumber, ok := j.PRNumber()
	if !ok {
		return nil
	}

	gh, err := a.client.installationClient(ctx, a.owner, a.repo)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Build `%s` finished with result **%s** in %s.", j.UID, j.Result, j.Runtime().Round(time.Second))
	comment := &github.IssueComment{Body: github.String(body)}
	_, _, err = gh.Issues.CreateComment(ctx, a.owner, a.repo, prNumber, comment)
	if err != nil {
		return fmt.Errorf("comment on PR #%d: %w", prNumber, err)
	}
	return nil
}
