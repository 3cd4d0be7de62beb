package serve

import (
	"fmt"

	"github.com/scan-io-git/secret-hook/internal/config"
	"github.com/scan-io-git/secret-hook/internal/gitlab"
)

// validateServeArgs validates the arguments provided to the serve command.
func validateServeArgs(cfg *config.Config, opts *RunOptionsServe) error {
	if cfg == nil {
		return fmt.Errorf("configuration is not loaded")
	}
	if opts.Workers < 0 || opts.Workers > 64 {
		return fmt.Errorf("the 'workers' flag must be between 1 and 64")
	}
	if cfg.GitLab.URL == "" || cfg.GitLab.Token == "" {
		return fmt.Errorf("%w: set gitlab.url and gitlab.token, or GITLAB_URI and GITLAB_TOKEN", gitlab.ErrNotConfigured)
	}
	return nil
}

// applyServeOptions lets command line flags win over the configuration.
func applyServeOptions(cfg *config.Config, opts *RunOptionsServe) {
	cfg.Server.Listen = config.SetThen(opts.Listen, cfg.Server.Listen)
	cfg.Scan.Rules = config.SetThen(opts.Rules, cfg.Scan.Rules)
	cfg.Scan.Workers = config.SetThen(opts.Workers, cfg.Scan.Workers)
}
