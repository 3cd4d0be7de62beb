package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-hclog"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/scan-io-git/secret-hook/internal/evaluator"
)

const devNull = "/dev/null"

// ParsePatch converts a unified multi-file diff, as printed by `git diff`,
// into file changes. The Diff of each change holds its hunks in the same
// shape GitLab returns them, headers first.
func ParsePatch(data []byte) ([]evaluator.FileChange, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	parsed, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	changes := make([]evaluator.FileChange, 0, len(parsed))
	for _, fd := range parsed {
		if fd == nil {
			continue
		}

		hunks, err := diff.PrintHunks(fd.Hunks)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
		}

		oldPath := strings.TrimPrefix(fd.OrigName, "a/")
		newPath := strings.TrimPrefix(fd.NewName, "b/")

		change := evaluator.FileChange{
			OldPath:     oldPath,
			NewPath:     newPath,
			Diff:        string(hunks),
			NewFile:     fd.OrigName == devNull,
			DeletedFile: fd.NewName == devNull,
		}
		switch {
		case change.NewFile:
			change.OldPath = newPath
		case change.DeletedFile:
			change.NewPath = oldPath
		default:
			change.RenamedFile = oldPath != newPath
		}

		changes = append(changes, change)
	}
	return changes, nil
}

// ChangesBetween computes the changes from base to head in the repository
// at repoPath, or in the repository containing it.
func ChangesBetween(ctx context.Context, repoPath, base, head string, logger hclog.Logger) ([]evaluator.FileChange, error) {
	if base == "" {
		return nil, ErrBaseRequired
	}
	if head == "" {
		return nil, ErrHeadRequired
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %q: %w", repoPath, err)
	}

	baseTree, err := resolveTree(repo, base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base %q: %w", base, err)
	}
	headTree, err := resolveTree(repo, head)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve head %q: %w", head, err)
	}

	patch, err := baseTree.PatchContext(ctx, headTree)
	if err != nil {
		return nil, fmt.Errorf("failed to compute diff: %w", err)
	}

	changes, err := ParsePatch([]byte(patch.String()))
	if err != nil {
		return nil, err
	}
	logger.Debug("computed local diff", "repository", repoPath, "base", base, "head", head, "files", len(changes))
	return changes, nil
}

func resolveTree(repo *git.Repository, rev string) (*object.Tree, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}
