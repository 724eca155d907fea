// Package revision reports the git commit a build was produced from.
package revision

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Info identifies the checked-out commit. The zero value means the source is
// not under version control or the repository has no commits yet.
type Info struct {
	Hash   string
	Branch string
}

// Short returns the abbreviated hash, or "" when unknown.
func (i Info) Short() string {
	if len(i.Hash) > 7 {
		return i.Hash[:7]
	}
	return i.Hash
}

// IsZero reports whether no revision was found.
func (i Info) IsZero() bool {
	return i.Hash == ""
}

// Resolve finds the repository containing dir (searching parent directories)
// and returns its HEAD. A directory outside any repository is not an error.
func Resolve(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("open repository at %s: %w", dir, err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("read HEAD: %w", err)
	}

	info := Info{Hash: head.Hash().String()}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	return info, nil
}
