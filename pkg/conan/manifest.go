package conan

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/shipgraph/shipgraph/pkg/errors"
)

// manifestNames are the conanfile flavors conan accepts.
var manifestNames = []string{"conanfile.py", "conanfile.txt"}

// Manifest describes a located conanfile: where it is on disk and where it
// sits relative to the repository root. The base name keys the manifest map
// in the submission payload.
type Manifest struct {
	Path    string // absolute path on disk
	RelPath string // repository-relative, forward slashes
	Name    string // base name (conanfile.py or conanfile.txt)
}

// FileWalker enumerates a repository's tracked files. It is satisfied by
// gitrepo.Repo; the indirection keeps this package free of git plumbing.
type FileWalker interface {
	// Root returns the repository's working directory.
	Root() string
	// WalkTrackedFiles calls fn with each tracked file's repository-relative
	// path. Returning a non-nil error from fn stops the walk.
	WalkTrackedFiles(fn func(rel string) error) error
}

// errFound stops a walk early once a conanfile is located.
var errFound = stderrors.New("conanfile found")

// FindManifest locates a conanfile.py or conanfile.txt among the
// repository's tracked files, restricted to the target directory. target
// must be an absolute path inside the repository.
func FindManifest(w FileWalker, target string) (*Manifest, error) {
	var found *Manifest

	err := w.WalkTrackedFiles(func(rel string) error {
		base := filepath.Base(rel)
		if base != manifestNames[0] && base != manifestNames[1] {
			return nil
		}
		abs := filepath.Join(w.Root(), filepath.FromSlash(rel))
		if !isWithin(target, abs) {
			return nil
		}
		found = &Manifest{Path: abs, RelPath: filepath.ToSlash(rel), Name: base}
		return errFound
	})
	if err != nil && !stderrors.Is(err, errFound) {
		return nil, err
	}
	if found == nil {
		return nil, errors.New(errors.ErrCodeManifestNotFound, "cannot find conanfile under %s", target)
	}
	return found, nil
}

// ManifestAt builds a Manifest for an explicitly supplied conanfile path.
func ManifestAt(root, path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, errors.New(errors.ErrCodeBadConfig, "conanfile %s is outside the repository", path)
	}
	return &Manifest{Path: abs, RelPath: filepath.ToSlash(rel), Name: filepath.Base(abs)}, nil
}

// CheckReadable verifies the conanfile can be opened before the resolver is
// launched, so a clear error names the file instead of a conan stderr dump.
func (m *Manifest) CheckReadable() error {
	f, err := os.Open(m.Path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeManifestUnreadable, err, "cannot read conanfile %s", m.RelPath)
	}
	return f.Close()
}

// isWithin reports whether abs is target or lies under it.
func isWithin(target, abs string) bool {
	rel, err := filepath.Rel(target, abs)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
