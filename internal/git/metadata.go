package git

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// RepositoryMetadata describes the local checkout a set of changes was taken from.
type RepositoryMetadata struct {
	RootFolder string
	BranchName string // Empty on a detached HEAD
	CommitHash string
	RemoteURL  string // First URL of the origin remote, without the .git suffix
}

// Namespace names the repository in logs and reports: the origin URL when
// one is configured, the root folder otherwise.
func (m *RepositoryMetadata) Namespace() string {
	if m.RemoteURL != "" {
		return m.RemoteURL
	}
	return m.RootFolder
}

// CollectRepositoryMetadata collects the root folder, HEAD and origin of the
// repository at path, or of the repository containing it.
func CollectRepositoryMetadata(path string) (*RepositoryMetadata, error) {
	if path == "" {
		return nil, fmt.Errorf("repository path is not set")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %q: %w", path, err)
	}

	md := &RepositoryMetadata{RootFolder: filepath.Clean(path)}
	if wt, err := repo.Worktree(); err == nil {
		md.RootFolder = filepath.Clean(wt.Filesystem.Root())
	}

	if head, err := repo.Head(); err == nil {
		if head.Name().IsBranch() {
			md.BranchName = head.Name().Short()
		}
		md.CommitHash = head.Hash().String()
	}

	if remote, err := repo.Remote("origin"); err == nil {
		if cfg := remote.Config(); cfg != nil && len(cfg.URLs) > 0 {
			md.RemoteURL = strings.TrimSuffix(cfg.URLs[0], ".git")
		}
	}

	return md, nil
}
