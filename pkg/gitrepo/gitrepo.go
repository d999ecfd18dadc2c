// Package gitrepo wraps the local git repository the way the pipeline needs
// it: the HEAD commit, the checked-out branch ref, the remote's owner/repo
// coordinates, and the tracked-file listing used for conanfile discovery.
package gitrepo

import (
	"net/url"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/shipgraph/shipgraph/pkg/errors"
)

// Repo is an open local repository.
type Repo struct {
	repo *git.Repository
	root string
}

// Open opens the repository at path. The path must be the working tree
// root (bare repositories are not useful here; the conanfile lives in the
// worktree).
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadConfig, err, "cannot open git repository at %s", path)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadConfig, err, "repository at %s has no worktree", path)
	}
	return &Repo{repo: repo, root: wt.Filesystem.Root()}, nil
}

// Root returns the working tree root.
func (r *Repo) Root() string { return r.root }

// HeadSHA returns the full hex SHA of the current HEAD commit.
func (r *Repo) HeadSHA() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBadConfig, err, "cannot resolve HEAD")
	}
	return head.Hash().String(), nil
}

// BranchRef returns the full ref of the checked-out branch
// (e.g. "refs/heads/main"). A detached HEAD is an error: the submission
// service requires a ref, so there is nothing useful to fall back to.
func (r *Repo) BranchRef() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBadConfig, err, "cannot resolve HEAD")
	}
	if !head.Name().IsBranch() {
		return "", errors.New(errors.ErrCodeDetachedHead, "no GITHUB_REF and HEAD is detached")
	}
	return head.Name().String(), nil
}

// RemoteURL returns the URL of the origin remote.
func (r *Repo) RemoteURL() (string, error) {
	remote, err := r.repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBadRemote, err, "repository has no origin remote")
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", errors.New(errors.ErrCodeBadRemote, "origin remote has no URL")
	}
	return urls[0], nil
}

// OwnerAndRepo parses the origin remote into owner and repository name,
// validating that the remote is an HTTPS URL on the expected server host.
// Anything else is a configuration error: the snapshot would be submitted
// for a repository that does not live on that server.
func (r *Repo) OwnerAndRepo(server string) (owner, name string, err error) {
	raw, err := r.RemoteURL()
	if err != nil {
		return "", "", err
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeBadRemote, err, "cannot parse remote URL %q", raw)
	}
	if parsed.Scheme != "https" || parsed.Host != server {
		return "", "", errors.New(errors.ErrCodeBadRemote, "remote %q is not an HTTPS remote on %s", raw, server)
	}

	path := strings.TrimSuffix(strings.Trim(parsed.Path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New(errors.ErrCodeBadRemote, "remote path %q is not owner/repo", parsed.Path)
	}
	return parts[0], parts[1], nil
}

// RelPath converts an absolute path inside the worktree to a
// repository-relative path with forward slashes.
func (r *Repo) RelPath(abs string) (string, error) {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.New(errors.ErrCodeBadConfig, "%s is outside the repository", abs)
	}
	return filepath.ToSlash(rel), nil
}

// WalkTrackedFiles calls fn with the repository-relative path of every file
// in the HEAD commit's tree. It satisfies conan.FileWalker.
func (r *Repo) WalkTrackedFiles(fn func(rel string) error) error {
	head, err := r.repo.Head()
	if err != nil {
		return errors.Wrap(errors.ErrCodeBadConfig, err, "cannot resolve HEAD")
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return err
	}
	tree, err := commit.Tree()
	if err != nil {
		return err
	}
	return tree.Files().ForEach(func(f *object.File) error {
		return fn(f.Name)
	})
}
