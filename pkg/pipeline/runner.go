package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shipgraph/shipgraph/pkg/conan"
	"github.com/shipgraph/shipgraph/pkg/depgraph"
	"github.com/shipgraph/shipgraph/pkg/errors"
	"github.com/shipgraph/shipgraph/pkg/github"
	"github.com/shipgraph/shipgraph/pkg/gitrepo"
	"github.com/shipgraph/shipgraph/pkg/purl"
	"github.com/shipgraph/shipgraph/pkg/snapshot"
)

// Runner executes the submission pipeline. It is stateless except for the
// logger, so one Runner can serve multiple runs with different options.
type Runner struct {
	Logger *log.Logger

	// submit is swapped out in tests.
	submit func(ctx context.Context, c *github.Client, owner, repo string, snap *snapshot.Snapshot) error
}

// NewRunner creates a runner with the given logger.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Logger: logger,
		submit: func(ctx context.Context, c *github.Client, owner, repo string, snap *snapshot.Snapshot) error {
			return c.SubmitSnapshot(ctx, owner, repo, snap)
		},
	}
}

// Execute runs the complete resolve → normalize → assemble → submit flow.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	// Stage 1: repository context
	repo, err := gitrepo.Open(opts.RepoPath)
	if err != nil {
		return nil, err
	}
	owner, name, err := repo.OwnerAndRepo(opts.Server)
	if err != nil {
		return nil, err
	}
	logger.Info("resolved repository", "owner", owner, "repo", name, "server", opts.Server)

	token := opts.Token
	if token == "" {
		token, err = github.TokenFromEnv()
		if err != nil {
			return nil, err
		}
	}

	// Stage 2: manifest
	manifest, fromGraphfile, err := r.locateManifest(repo, opts)
	if err != nil {
		return nil, err
	}
	if err := manifest.CheckReadable(); err != nil {
		return nil, err
	}
	logger.Info("located manifest", "path", manifest.RelPath)

	// Stage 3: resolve
	resolveStart := time.Now()
	resolver := conan.NewResolver(opts.ConanPath, opts.Profile, logger)

	var doc *conan.Document
	if fromGraphfile {
		doc, err = conan.LoadGraphFile(opts.Graphfile)
	} else {
		if opts.Graphfile != "" {
			logger.Warn("conanfile found, ignoring graphfile", "conanfile", manifest.RelPath, "graphfile", opts.Graphfile)
		}
		doc, err = resolver.GraphInfo(ctx, manifest.Path)
	}
	if err != nil {
		return nil, err
	}

	detectorVersion, err := resolver.Version(ctx)
	if err != nil {
		logger.Warn("cannot determine conan version", "err", err)
		detectorVersion = ""
	}

	// Stage 4: normalize
	table := conan.ParseGraph(doc, logger)
	if _, ok := table[depgraph.RootID]; !ok {
		return nil, errors.New(errors.ErrCodeResolverBadOutput,
			"graph output has no root node")
	}
	tree := depgraph.Build(table, depgraph.RootID, logger)
	tree.Classify()

	result := &Result{
		Owner:        owner,
		Repo:         name,
		ManifestPath: manifest.RelPath,
	}
	result.Stats.ResolveTime = time.Since(resolveStart)
	result.Stats.PackageCount = len(table) - 1
	result.Stats.DirectCount = len(tree.ChildIDs(tree.Root()))
	logger.Info("resolved dependency graph",
		"packages", result.Stats.PackageCount,
		"direct", result.Stats.DirectCount,
		"duration", result.Stats.ResolveTime)

	// Stage 5: assemble
	sha, err := r.resolveSha(repo, opts)
	if err != nil {
		return nil, err
	}
	ref, err := resolveRef(repo)
	if err != nil {
		return nil, err
	}

	encoder := purl.NewEncoder(purl.DefaultConfig(), logger)
	assembler := snapshot.NewAssembler(encoder, logger)
	snap := assembler.Assemble(tree, snapshot.Inputs{
		Sha:             sha,
		Ref:             ref,
		ManifestName:    manifest.Name,
		ManifestPath:    manifest.RelPath,
		DetectorVersion: detectorVersion,
	})
	result.Snapshot = snap

	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encoding snapshot payload")
	}
	result.Payload = payload
	logger.Debug("assembled snapshot", "sha", sha, "ref", ref, "bytes", len(payload))
	if pretty, err := json.MarshalIndent(snap, "", "  "); err == nil {
		logger.Debug("snapshot payload", "json", string(pretty))
	}

	// Stage 6: submit
	client := github.NewClient(opts.Server, token)
	result.SubmissionURL = client.SubmissionURL(owner, name)

	if opts.DryRun {
		logger.Info("dry run, skipping submission", "url", result.SubmissionURL)
		return result, nil
	}

	submitStart := time.Now()
	if err := r.submit(ctx, client, owner, name, snap); err != nil {
		return nil, err
	}
	result.Submitted = true
	result.Stats.SubmitTime = time.Since(submitStart)
	logger.Info("submitted snapshot",
		"url", result.SubmissionURL,
		"duration", result.Stats.SubmitTime)

	return result, nil
}

// locateManifest resolves the conanfile for the run. An explicit path wins;
// otherwise the repository's tracked files are searched under the target
// directory. A present conanfile always drives a live resolve; only when no
// conanfile exists does a supplied graphfile stand in as the manifest, which
// the second return value reports.
func (r *Runner) locateManifest(repo *gitrepo.Repo, opts Options) (*conan.Manifest, bool, error) {
	if opts.Conanfile != "" {
		manifest, err := conan.ManifestAt(repo.Root(), opts.Conanfile)
		return manifest, false, err
	}

	target, err := filepath.Abs(opts.Target)
	if err != nil {
		return nil, false, err
	}
	manifest, err := conan.FindManifest(repo, target)
	if err == nil {
		return manifest, false, nil
	}
	if opts.Graphfile != "" && errors.Is(err, errors.ErrCodeManifestNotFound) {
		manifest, err := conan.ManifestAt(repo.Root(), opts.Graphfile)
		return manifest, true, err
	}
	return nil, false, err
}

// resolveSha picks the commit SHA: flag, GITHUB_SHA, then HEAD.
func (r *Runner) resolveSha(repo *gitrepo.Repo, opts Options) (string, error) {
	if opts.Sha != "" {
		return opts.Sha, nil
	}
	if sha := os.Getenv("GITHUB_SHA"); sha != "" {
		return sha, nil
	}
	return repo.HeadSHA()
}

// resolveRef picks the git ref: GITHUB_REF, then the checked-out branch.
// A detached HEAD without GITHUB_REF is fatal since the submission API
// requires a ref.
func resolveRef(repo *gitrepo.Repo) (string, error) {
	if ref := os.Getenv("GITHUB_REF"); ref != "" {
		return ref, nil
	}
	return repo.BranchRef()
}
