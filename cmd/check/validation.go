package check

import (
	"fmt"
	"os"
)

type checkMode string

const (
	modeDiffFile   checkMode = "diff-file"
	modeRepository checkMode = "repository"
	modeProject    checkMode = "project"

	formatText  = "text"
	formatJSON  = "json"
	formatSARIF = "sarif"
)

// validateCheckArgs validates the arguments provided to the check command and
// returns the source of the changes to check.
func validateCheckArgs(opts *RunOptionsCheck, args []string) (checkMode, error) {
	if len(args) > 0 {
		return "", fmt.Errorf("unexpected arguments: %v", args)
	}

	var modes []checkMode
	if opts.DiffFile != "" {
		modes = append(modes, modeDiffFile)
	}
	if opts.Repo != "" {
		modes = append(modes, modeRepository)
	}
	if opts.Project != 0 || opts.Commit != "" {
		modes = append(modes, modeProject)
	}

	switch len(modes) {
	case 0:
		return "", fmt.Errorf("one of 'diff-file', 'repo' or 'project' flags must be specified")
	case 1:
	default:
		return "", fmt.Errorf("the 'diff-file', 'repo' and 'project' flags are mutually exclusive")
	}

	mode := modes[0]
	switch mode {
	case modeDiffFile:
		if opts.DiffFile != "-" {
			if _, err := os.Stat(opts.DiffFile); err != nil {
				return "", fmt.Errorf("the diff file is not accessible: %w", err)
			}
		}
	case modeRepository:
		if opts.Base == "" || opts.Head == "" {
			return "", fmt.Errorf("the 'base' and 'head' flags must be specified with 'repo'")
		}
		if _, err := os.Stat(opts.Repo); err != nil {
			return "", fmt.Errorf("the repository path is not accessible: %w", err)
		}
	case modeProject:
		if opts.Project <= 0 {
			return "", fmt.Errorf("the 'project' flag must be a positive project ID")
		}
		if opts.Commit == "" {
			return "", fmt.Errorf("the 'commit' flag must be specified with 'project'")
		}
	}

	if opts.ReportStatus && mode != modeProject {
		return "", fmt.Errorf("the 'report-status' flag requires 'project' and 'commit'")
	}
	if (opts.Base != "" || opts.Head != "") && mode != modeRepository {
		return "", fmt.Errorf("the 'base' and 'head' flags require 'repo'")
	}

	switch opts.Format {
	case formatText, formatJSON, formatSARIF:
	case "":
		opts.Format = formatText
	default:
		return "", fmt.Errorf("unsupported format %q, use text, json or sarif", opts.Format)
	}

	if opts.Workers < 0 || opts.Workers > 64 {
		return "", fmt.Errorf("the 'workers' flag must be between 1 and 64")
	}
	return mode, nil
}
