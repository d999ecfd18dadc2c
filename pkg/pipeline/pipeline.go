// Package pipeline runs the complete resolve → normalize → assemble → submit
// flow for one repository.
//
// This package implements the end-to-end run shared by the CLI and any other
// entry point: locate the manifest, resolve the dependency graph with conan,
// normalize it into a rooted tree, assemble the snapshot payload, and submit
// it to the GitHub Dependency Graph Submission API.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(logger)
//	opts := pipeline.Options{
//	    RepoPath: ".",
//	    Server:   "github.com",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.SubmissionURL)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shipgraph/shipgraph/pkg/errors"
	"github.com/shipgraph/shipgraph/pkg/snapshot"
)

// Defaults applied by ValidateAndSetDefaults.
const (
	// DefaultServer is the GitHub host snapshots are submitted to.
	DefaultServer = "github.com"

	// DefaultConanPath is the resolver executable looked up on PATH.
	DefaultConanPath = "conan"
)

// Options contains all configuration for a pipeline run.
type Options struct {
	// RepoPath is the git repository the snapshot is submitted for.
	RepoPath string

	// Target restricts the manifest search to a directory inside the
	// repository. Defaults to RepoPath.
	Target string

	// Server is the GitHub host, a bare hostname such as "github.com"
	// or "github.example.com".
	Server string

	// Token overrides the API token. When empty the GITHUB_TOKEN and
	// GH_TOKEN environment variables are consulted.
	Token string

	// ConanPath is the conan executable to run.
	ConanPath string

	// Profile is an optional conan build profile forwarded to the
	// resolver.
	Profile string

	// Conanfile is an explicit manifest path, skipping the search.
	Conanfile string

	// Graphfile is a pre-resolved graph JSON file. When set the
	// resolver is not run.
	Graphfile string

	// Sha overrides the commit SHA recorded in the snapshot.
	Sha string

	// DryRun assembles the payload without submitting it.
	DryRun bool

	// Logger receives progress output. Defaults to a discard logger.
	Logger *log.Logger

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.RepoPath == "" {
		o.RepoPath = "."
	}
	if o.Target == "" {
		o.Target = o.RepoPath
	}
	if o.Server == "" {
		o.Server = DefaultServer
	}
	if o.ConanPath == "" {
		o.ConanPath = DefaultConanPath
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if err := errors.ValidateServerHost(o.Server); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Owner and Repo identify the repository on the server.
	Owner string
	Repo  string

	// Snapshot is the assembled payload.
	Snapshot *snapshot.Snapshot

	// Payload is the serialized snapshot exactly as submitted.
	Payload []byte

	// SubmissionURL is the endpoint the snapshot was (or would be)
	// posted to.
	SubmissionURL string

	// ManifestPath is the repository-relative manifest location.
	ManifestPath string

	// Submitted reports whether the payload was actually posted.
	Submitted bool

	// Stats contains counts and timing information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	PackageCount int
	DirectCount  int
	ResolveTime  time.Duration
	SubmitTime   time.Duration
}
