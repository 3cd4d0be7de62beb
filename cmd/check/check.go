package check

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/secret-hook/internal/config"
	"github.com/scan-io-git/secret-hook/internal/evaluator"
	"github.com/scan-io-git/secret-hook/internal/findings"
	"github.com/scan-io-git/secret-hook/internal/git"
	"github.com/scan-io-git/secret-hook/internal/gitlab"
	"github.com/scan-io-git/secret-hook/internal/logger"
	"github.com/scan-io-git/secret-hook/internal/rulesource"
	"github.com/scan-io-git/secret-hook/internal/scanner"
	"github.com/scan-io-git/secret-hook/internal/session"
	"github.com/scan-io-git/secret-hook/internal/webhook"
	"github.com/scan-io-git/secret-hook/pkg/shared/errors"
	"github.com/scan-io-git/secret-hook/pkg/shared/files"
	"github.com/scan-io-git/secret-hook/pkg/shared/httpclient"
)

// RunOptionsCheck holds the arguments for the check command.
type RunOptionsCheck struct {
	DiffFile     string
	Repo         string
	Base         string
	Head         string
	Project      int
	Commit       string
	ReportStatus bool
	Rules        string
	Format       string
	OutputPath   string
	Workers      int
}

var (
	AppConfig         *config.Config
	checkOptions      RunOptionsCheck
	exampleCheckUsage = `  # Check the working changes of a repository
  git diff | secrethook check --diff-file - --rules rules.yaml

  # Check the commits between two revisions of a local repository
  secrethook check --repo . --base main --head HEAD

  # Check a commit on GitLab with the repository ruleset and report the verdict on it
  secrethook check --project 42 --commit 3f2a9c1e... --report-status

  # Write a SARIF report to a file
  secrethook check --diff-file changes.patch --format sarif --output results/`
)

// CheckCmd represents the check command.
var CheckCmd = &cobra.Command{
	Use:                   "check {--diff-file PATH|- | --repo PATH --base REV --head REV | --project ID --commit SHA [--report-status]} [--rules PATH|URL] [--format text|json|sarif] [--output PATH]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleCheckUsage,
	Short:                 "Scan a set of changes for secrets without the webhook server",
	Long: `Scan a set of changes for secrets without the webhook server.

Exit codes:
  0  no secrets found in modified code
  1  the scan could not be completed
  2  potential secrets found`,
	RunE: runCheckCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runCheckCommand executes the check command.
func runCheckCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && cmd.Flags().NFlag() == 0 {
		return cmd.Help()
	}

	log := logger.NewLogger(AppConfig, "core-check")

	mode, err := validateCheckArgs(&checkOptions, args)
	if err != nil {
		log.Error("invalid check arguments", "error", err)
		return errors.NewCommandError(err, errors.ExitCodeError)
	}

	return runCheck(cmd.Context(), AppConfig, &checkOptions, mode, cmd.InOrStdin(), cmd.OutOrStdout(), log)
}

// runCheck collects the changes for mode, scans them and renders the result.
func runCheck(ctx context.Context, cfg *config.Config, opts *RunOptionsCheck, mode checkMode, stdin io.Reader, stdout io.Writer, log hclog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}

	var client *gitlab.Client
	if mode == modeProject {
		c, err := gitlab.New(cfg, log.Named("gitlab"))
		if err != nil {
			log.Error("failed to create gitlab client", "error", err)
			return errors.NewCommandError(err, errors.ExitCodeError)
		}
		client = c
	}

	sess, err := resolveSession(ctx, cfg, opts, client, log)
	if err != nil {
		log.Error("failed to load ruleset", "error", err)
		return errors.NewCommandError(err, errors.ExitCodeError)
	}

	changes, namespace, err := collectChanges(ctx, opts, mode, client, stdin, log)
	if err != nil {
		log.Error("failed to collect changes", "error", err)
		return errors.NewCommandError(err, errors.ExitCodeError)
	}

	workers := config.SetThen(opts.Workers, cfg.Scan.Workers)
	res := scanner.New(workers, log.Named("scanner")).Scan(ctx, sess, namespace, changes)

	if opts.ReportStatus && client != nil {
		if err := reportStatus(ctx, client, opts, res); err != nil {
			log.Error("failed to report commit status", "error", err)
			return errors.NewCommandError(err, errors.ExitCodeError)
		}
	}

	if err := writeResult(opts, res, sess, stdout); err != nil {
		log.Error("failed to write result", "error", err)
		return errors.NewCommandError(err, errors.ExitCodeError)
	}

	switch {
	case res.Failed:
		return errors.NewCommandError(res.Err, errors.ExitCodeError)
	case len(res.Findings) > 0:
		log.Warn("potential secrets found", "findings", len(res.Findings))
		return errors.NewCommandError(errors.ErrSecretsFound, errors.ExitCodeSecretsFound)
	}

	log.Info("check command completed successfully", "files", res.Files)
	return nil
}

// resolveSession picks the ruleset: --rules wins, then the repository ruleset
// of a GitLab project, then scan.rules.
func resolveSession(ctx context.Context, cfg *config.Config, opts *RunOptionsCheck, client *gitlab.Client, log hclog.Logger) (*session.Session, error) {
	restyClient := httpclient.InitializeRestyClient(log.Named("http"), cfg)
	location := config.SetThen(opts.Rules, cfg.Scan.Rules)

	defaultSession, err := rulesource.LoadDefault(ctx, location, restyClient, log.Named("rules"))
	if err != nil {
		return nil, err
	}
	if client == nil || opts.Rules != "" {
		return defaultSession, nil
	}

	resolver := rulesource.NewResolver(client, defaultSession, 0, log.Named("rules"))
	defer resolver.Close()
	return resolver.ForProject(ctx, opts.Project)
}

func collectChanges(ctx context.Context, opts *RunOptionsCheck, mode checkMode, client *gitlab.Client, stdin io.Reader, log hclog.Logger) ([]evaluator.FileChange, string, error) {
	switch mode {
	case modeDiffFile:
		data, err := readDiff(opts.DiffFile, stdin)
		if err != nil {
			return nil, "", err
		}
		changes, err := git.ParsePatch(data)
		return changes, opts.DiffFile, err
	case modeRepository:
		md, err := git.CollectRepositoryMetadata(opts.Repo)
		if err != nil {
			return nil, "", err
		}
		changes, err := git.ChangesBetween(ctx, md.RootFolder, opts.Base, opts.Head, log.Named("git"))
		return changes, md.Namespace(), err
	case modeProject:
		changes, err := client.CommitDiff(ctx, opts.Project, opts.Commit)
		return changes, fmt.Sprintf("project %d", opts.Project), err
	default:
		return nil, "", fmt.Errorf("unsupported check mode %q", mode)
	}
}

func readDiff(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return files.ReadFile(path)
}

func reportStatus(ctx context.Context, client *gitlab.Client, opts *RunOptionsCheck, res scanner.Result) error {
	state, description := gitlab.StateSuccess, webhook.DescriptionSuccess
	switch {
	case res.Failed:
		state, description = gitlab.StateFailed, webhook.DescriptionError
	case len(res.Findings) > 0:
		state, description = gitlab.StateFailed, findings.Describe(res.Findings, 255)
	}
	return client.SetCommitStatus(ctx, opts.Project, opts.Commit, state, description)
}

// Initialize flags for the check command.
func init() {
	CheckCmd.Flags().StringVarP(&checkOptions.DiffFile, "diff-file", "d", "", "Path to a unified diff to check, '-' reads it from stdin.")
	CheckCmd.Flags().StringVar(&checkOptions.Repo, "repo", "", "Path to a local git repository to check.")
	CheckCmd.Flags().StringVar(&checkOptions.Base, "base", "", "Base revision of the local repository diff.")
	CheckCmd.Flags().StringVar(&checkOptions.Head, "head", "", "Head revision of the local repository diff.")
	CheckCmd.Flags().IntVar(&checkOptions.Project, "project", 0, "ID of the GitLab project to check.")
	CheckCmd.Flags().StringVar(&checkOptions.Commit, "commit", "", "SHA of the GitLab commit to check.")
	CheckCmd.Flags().BoolVar(&checkOptions.ReportStatus, "report-status", false, "Report the verdict as a commit status on GitLab.")
	CheckCmd.Flags().StringVarP(&checkOptions.Rules, "rules", "r", "", "Path or URL of the ruleset, overrides scan.rules and the repository ruleset.")
	CheckCmd.Flags().StringVarP(&checkOptions.Format, "format", "f", formatText, "Output format: text, json or sarif.")
	CheckCmd.Flags().StringVarP(&checkOptions.OutputPath, "output", "o", "", "Path to the output file or directory, stdout when empty.")
	CheckCmd.Flags().IntVarP(&checkOptions.Workers, "workers", "j", 0, "Number of files scanned concurrently, overrides scan.workers.")
	CheckCmd.Flags().BoolP("help", "h", false, "Show help for the check command.")
}
