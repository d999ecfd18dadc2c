// Package snapshot assembles the dependency snapshot payload submitted to
// the GitHub Dependency Graph Submission API.
//
// The payload is write-once: [Assembler.Assemble] produces the complete
// structure before any transport work happens, so a run either submits a
// fully formed snapshot or nothing at all.
package snapshot

import (
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/shipgraph/shipgraph/pkg/depgraph"
	"github.com/shipgraph/shipgraph/pkg/purl"
)

// Schema constants identifying this tool to the submission API.
const (
	// SchemaVersion is the snapshot schema version.
	SchemaVersion = 0

	// JobCorrelator groups submissions from this tool across runs.
	JobCorrelator = "conan-dependency-submission"

	// DetectorName and DetectorURL identify the conan ecosystem detector.
	DetectorName = "conan"
	DetectorURL  = "https://conan.io/"
)

// Snapshot is the wire-level submission payload.
type Snapshot struct {
	Version   int                 `json:"version"`
	Sha       string              `json:"sha"`
	Ref       string              `json:"ref"`
	Job       Job                 `json:"job"`
	Detector  Detector            `json:"detector"`
	Scanned   string              `json:"scanned"`
	Manifests map[string]Manifest `json:"manifests"`
}

// Job correlates this submission with the run that produced it.
type Job struct {
	Correlator string `json:"correlator"`
	ID         string `json:"id"`
}

// Detector identifies the tool that resolved the dependencies.
type Detector struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// Manifest is one manifest file's resolved dependency map.
type Manifest struct {
	Name     string                `json:"name"`
	File     FileLocation          `json:"file"`
	Resolved map[string]Dependency `json:"resolved"`
}

// FileLocation points at the manifest within the repository.
type FileLocation struct {
	SourceLocation string `json:"source_location"`
}

// Dependency is one resolved package entry.
type Dependency struct {
	PackageURL   string            `json:"package_url"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Relationship string            `json:"relationship,omitempty"`
	Scope        string            `json:"scope,omitempty"`
	Dependencies []string          `json:"dependencies"`
}

// Inputs carries the externally supplied pieces of a snapshot: everything
// the assembler cannot derive from the tree itself.
type Inputs struct {
	Sha             string // resolved commit SHA
	Ref             string // resolved git ref (refs/heads/...)
	ManifestName    string // manifest base name, keys the manifest map
	ManifestPath    string // repository-relative manifest path
	DetectorVersion string // conan version string, may be empty
}

// Assembler builds snapshots from classified dependency trees.
type Assembler struct {
	encoder *purl.Encoder
	logger  *log.Logger
	now     func() time.Time
	newID   func() string
}

// Option customizes an Assembler. Used by tests to pin the clock and the
// job id generator.
type Option func(*Assembler)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithJobID overrides the job id generator.
func WithJobID(newID func() string) Option {
	return func(a *Assembler) { a.newID = newID }
}

// NewAssembler creates an assembler using the given identifier encoder.
func NewAssembler(encoder *purl.Encoder, logger *log.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	a := &Assembler{
		encoder: encoder,
		logger:  logger,
		now:     time.Now,
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble walks the classified tree and produces the complete payload.
// The manifest map has exactly one entry, keyed by the manifest's base
// name. The root pseudo-node is excluded from the resolved map; every
// other record in the lookup table appears, whether or not the tree
// reached it (unreached records simply carry no relationship).
func (a *Assembler) Assemble(tree *depgraph.Tree, in Inputs) *Snapshot {
	table := tree.Table()
	resolved := make(map[string]Dependency, len(table))

	for _, id := range table.IDs() {
		if id == tree.Root() {
			continue
		}
		rec := table[id]
		resolved[rec.Name] = a.dependencyEntry(tree, id, rec)
	}

	return &Snapshot{
		Version:  SchemaVersion,
		Sha:      in.Sha,
		Ref:      in.Ref,
		Job:      Job{Correlator: JobCorrelator, ID: a.newID()},
		Detector: Detector{Name: DetectorName, Version: in.DetectorVersion, URL: DetectorURL},
		Scanned:  a.now().UTC().Format(time.RFC3339),
		Manifests: map[string]Manifest{
			in.ManifestName: {
				Name:     in.ManifestName,
				File:     FileLocation{SourceLocation: in.ManifestPath},
				Resolved: resolved,
			},
		},
	}
}

// dependencyEntry encodes one record. Child identifiers are deduplicated
// and sorted so identical inputs assemble to identical payload bytes.
func (a *Assembler) dependencyEntry(tree *depgraph.Tree, id int, rec *depgraph.Package) Dependency {
	children := tree.Children(id)
	deps := make([]string, 0, len(children))
	for _, child := range children {
		deps = append(deps, a.encoder.DependencyURL(child))
	}
	slices.Sort(deps)
	deps = slices.Compact(deps)

	return Dependency{
		PackageURL:   a.encoder.PackageURL(rec),
		Metadata:     a.encoder.Metadata(rec),
		Relationship: string(rec.Relationship),
		Scope:        string(rec.Scope),
		Dependencies: deps,
	}
}
