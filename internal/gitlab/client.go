// Package gitlab wraps the GitLab REST calls the scanner needs: commit
// diffs, commit statuses and the per-repository ruleset file.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	gogitlab "github.com/xanzy/go-gitlab"

	"github.com/scan-io-git/secret-hook/internal/config"
	"github.com/scan-io-git/secret-hook/internal/evaluator"
	"github.com/scan-io-git/secret-hook/pkg/shared/httpclient"
)

// ErrNotConfigured is returned when the GitLab URL or token is missing.
var ErrNotConfigured = errors.New("gitlab url and token must be configured")

const diffPageSize = 100

// State is the commit status reported back to GitLab.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

func (s State) buildState() (gogitlab.BuildStateValue, error) {
	switch s {
	case StatePending:
		return gogitlab.Pending, nil
	case StateSuccess:
		return gogitlab.Success, nil
	case StateFailed:
		return gogitlab.Failed, nil
	default:
		return "", fmt.Errorf("unsupported commit state %q", s)
	}
}

// Client talks to a single GitLab instance.
type Client struct {
	api        *gogitlab.Client
	logger     hclog.Logger
	configPath string
	configRef  string
	statusName string
}

// New builds a client from the gitlab and http_client config sections.
func New(cfg *config.Config, logger hclog.Logger) (*Client, error) {
	if cfg == nil || cfg.GitLab.URL == "" || cfg.GitLab.Token == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	httpConfig := config.ResolveHTTPConfig(&cfg.HTTPClient)
	restyClient := httpclient.InitializeRestyClient(logger, cfg)

	api, err := gogitlab.NewClient(cfg.GitLab.Token,
		gogitlab.WithBaseURL(cfg.GitLab.URL),
		gogitlab.WithHTTPClient(httpclient.StandardClient(restyClient)),
		gogitlab.WithCustomRetryMax(httpConfig.RetryCount),
		gogitlab.WithCustomRetryWaitMinMax(httpConfig.RetryWaitTime, httpConfig.RetryMaxWaitTime),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	return &Client{
		api:        api,
		logger:     logger,
		configPath: config.SetThen(cfg.GitLab.RepoConfigPath, config.DefaultRepoConfigPath),
		configRef:  config.SetThen(cfg.GitLab.RepoConfigRef, config.DefaultRepoConfigRef),
		statusName: config.SetThen(cfg.GitLab.StatusName, config.DefaultStatusName),
	}, nil
}

// RepositoryConfig fetches the repository ruleset file. found is false when
// the project has no such file on the configured ref.
func (c *Client) RepositoryConfig(ctx context.Context, projectID int) (data []byte, found bool, err error) {
	opts := &gogitlab.GetRawFileOptions{Ref: gogitlab.String(c.configRef)}
	data, resp, err := c.api.RepositoryFiles.GetRawFile(projectID, c.configPath, opts, gogitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			c.logger.Debug("repository has no ruleset file", "project_id", projectID, "path", c.configPath, "ref", c.configRef)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to fetch %q for project %d: %w", c.configPath, projectID, err)
	}
	return data, true, nil
}

// CommitDiff returns every file change of the commit, following pagination.
func (c *Client) CommitDiff(ctx context.Context, projectID int, sha string) ([]evaluator.FileChange, error) {
	var changes []evaluator.FileChange

	page := 1
	for {
		opts := &gogitlab.GetCommitDiffOptions{
			ListOptions: gogitlab.ListOptions{Page: page, PerPage: diffPageSize},
		}
		diffs, resp, err := c.api.Commits.GetCommitDiff(projectID, sha, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch diff of %s in project %d (page %d): %w", sha, projectID, page, err)
		}

		for _, d := range diffs {
			changes = append(changes, evaluator.FileChange{
				OldPath:     d.OldPath,
				NewPath:     d.NewPath,
				Diff:        d.Diff,
				NewFile:     d.NewFile,
				RenamedFile: d.RenamedFile,
				DeletedFile: d.DeletedFile,
			})
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	c.logger.Debug("fetched commit diff", "project_id", projectID, "sha", sha, "files", len(changes))
	return changes, nil
}

// SetCommitStatus reports state on the commit under the configured status name.
func (c *Client) SetCommitStatus(ctx context.Context, projectID int, sha string, state State, description string) error {
	buildState, err := state.buildState()
	if err != nil {
		return err
	}

	opts := &gogitlab.SetCommitStatusOptions{
		State:       buildState,
		Name:        gogitlab.String(c.statusName),
		Description: gogitlab.String(description),
	}
	if _, _, err := c.api.Commits.SetCommitStatus(projectID, sha, opts, gogitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to set %s status on %s in project %d: %w", state, sha, projectID, err)
	}

	c.logger.Debug("commit status set", "project_id", projectID, "sha", sha, "state", state)
	return nil
}
