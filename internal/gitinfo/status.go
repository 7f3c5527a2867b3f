// Package gitinfo reports the git state of the working directory.
package gitinfo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// DetachedHead is the branch label used when HEAD points at a commit.
const DetachedHead = "(Detached HEAD)"

// Info is a snapshot of the repository containing a directory.
type Info struct {
	IsRepo bool
	Root   string
	Branch string
	Clean  bool
}

// StatusLabel is "Clean" or "Modified".
func (i Info) StatusLabel() string {
	if i.Clean {
		return "Clean"
	}
	return "Modified"
}

// Label renders the status bar text.
func (i Info) Label() string {
	if !i.IsRepo {
		return "Git: (No Repo)"
	}
	return fmt.Sprintf("Git: %s | Status: %s", i.Branch, i.StatusLabel())
}

// Status inspects the repository containing dir, searching parent
// directories for .git. A directory outside any repository is not an error.
func Status(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to open repository: %w", err)
	}

	info := Info{IsRepo: true}

	branch, err := currentBranch(repo)
	if err != nil {
		return info, err
	}
	info.Branch = branch

	wt, err := repo.Worktree()
	if err != nil {
		return info, fmt.Errorf("failed to open worktree: %w", err)
	}
	info.Root = wt.Filesystem.Root()

	st, err := wt.Status()
	if err != nil {
		return info, fmt.Errorf("failed to read worktree status: %w", err)
	}
	info.Clean = st.IsClean()
	return info, nil
}

// currentBranch reads HEAD without resolving it, so a branch with no commits
// yet still reports its name.
func currentBranch(repo *git.Repository) (string, error) {
	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if head.Type() == plumbing.SymbolicReference {
		return head.Target().Short(), nil
	}
	return DetachedHead, nil
}

// Init creates a repository in dir.
func Init(dir string) error {
	if _, err := git.PlainInit(dir, false); err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	return nil
}
