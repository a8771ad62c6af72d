// Package source extracts version-control metadata from the project
// directory. The metadata is advisory; a directory that is not a git
// repository yields no metadata and no error.
package source

import (
	"errors"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/fleetship/fleetship/internal/core/deploy"
)

// Describe inspects dir for a git repository and returns HEAD metadata.
// Returns (nil, nil) when dir is not inside a repository.
func Describe(dir string, logger *slog.Logger) (*deploy.SourceInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "source")

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			logger.Debug("no git repository found", "dir", dir)
			return nil, nil
		}
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		// A repository with no commits yet has no HEAD to describe.
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			logger.Debug("repository has no HEAD", "dir", dir)
			return nil, nil
		}
		return nil, err
	}

	info := &deploy.SourceInfo{
		Commit: head.Hash().String(),
	}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	info.Dirty = worktreeDirty(repo, logger)

	logger.Debug("described source",
		"commit", info.Commit,
		"branch", info.Branch,
		"dirty", info.Dirty)
	return info, nil
}

// worktreeDirty reports whether the worktree has uncommitted changes.
// Status failures degrade to a clean report rather than failing the
// deploy.
func worktreeDirty(repo *git.Repository, logger *slog.Logger) bool {
	wt, err := repo.Worktree()
	if err != nil {
		logger.Debug("worktree unavailable", "error", err)
		return false
	}
	status, err := wt.Status()
	if err != nil {
		logger.Debug("status check failed", "error", err)
		return false
	}
	return !status.IsClean()
}
