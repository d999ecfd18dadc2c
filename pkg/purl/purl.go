// Package purl encodes depgraph records as canonical package identifiers
// (package URLs) bounded by the submission schema's metadata limits.
//
// A full identifier carries the record's flattened metadata as purl
// qualifiers, e.g.
//
//	pkg:conan/openssl@3.2.0?arch=x86_64&os=Linux&rrev=f1e2d3
//
// Identifiers used to reference a child from its parent's dependency list
// carry no qualifiers; name and version are enough there.
package purl

import (
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	packageurl "github.com/package-url/packageurl-go"

	"github.com/shipgraph/shipgraph/pkg/depgraph"
)

// MaxMetadataFields is the submission schema's ceiling on scalar metadata
// fields per dependency entry.
const MaxMetadataFields = 8

// Config is the pure-data configuration for an Encoder: key remappings and
// exclusions imposed by the remote schema. It is injected rather than held
// as package state so alternative schemas stay testable.
type Config struct {
	// Type is the purl ecosystem type, e.g. "conan".
	Type string

	// RevisionKey is the qualifier name for the record's ref revision.
	RevisionKey string

	// Mapped renames internal metadata keys before encoding
	// (e.g. "sha" -> "rrev").
	Mapped map[string]string

	// Handled lists metadata keys already consumed by earlier processing;
	// they never reach the encoded output.
	Handled []string

	// Disallowed lists keys the remote schema rejects inside a purl query
	// (numeric-only keys collide with reserved schema fields). They are
	// carried in the entry's bounded metadata object instead.
	Disallowed []string

	// MaxMetadataFields caps the entry's metadata object. Zero means
	// MaxMetadataFields.
	MaxMetadataFields int
}

// DefaultConfig returns the configuration for the GitHub dependency
// snapshot schema and the conan ecosystem.
func DefaultConfig() Config {
	return Config{
		Type:        packageurl.TypeConan,
		RevisionKey: "rrev",
		Mapped:      map[string]string{"sha": "rrev"},
		Handled:     []string{"dependencies"},
		Disallowed:  []string{"386"},
	}
}

// Encoder produces canonical identifiers and bounded metadata for records.
type Encoder struct {
	cfg        Config
	handled    map[string]struct{}
	disallowed map[string]struct{}
	logger     *log.Logger
}

// NewEncoder creates an encoder with the given schema configuration.
func NewEncoder(cfg Config, logger *log.Logger) *Encoder {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if cfg.MaxMetadataFields == 0 {
		cfg.MaxMetadataFields = MaxMetadataFields
	}
	e := &Encoder{
		cfg:        cfg,
		handled:    make(map[string]struct{}, len(cfg.Handled)),
		disallowed: make(map[string]struct{}, len(cfg.Disallowed)),
		logger:     logger,
	}
	for _, k := range cfg.Handled {
		e.handled[k] = struct{}{}
	}
	for _, k := range cfg.Disallowed {
		e.disallowed[k] = struct{}{}
	}
	return e
}

// PackageURL returns the record's full canonical identifier, qualifiers
// included. Qualifier keys and values are percent-encoded and sorted, so
// identical records always encode to identical strings.
func (e *Encoder) PackageURL(p *depgraph.Package) string {
	quals := make(map[string]string, len(p.Metadata)+1)

	for key, value := range p.Metadata {
		if mapped, ok := e.cfg.Mapped[key]; ok {
			quals[mapped] = value
			continue
		}
		if _, skip := e.handled[key]; skip {
			continue
		}
		if _, skip := e.disallowed[key]; skip {
			continue
		}
		quals[key] = value
	}

	if p.Revision != "" && e.cfg.RevisionKey != "" {
		quals[e.cfg.RevisionKey] = p.Revision
	}

	pu := packageurl.NewPackageURL(e.cfg.Type, "", p.Name, p.Version, packageurl.QualifiersFromMap(quals), "")
	return pu.ToString()
}

// DependencyURL returns the bare identifier used when referencing p from
// its parent's dependency list.
func (e *Encoder) DependencyURL(p *depgraph.Package) string {
	pu := packageurl.NewPackageURL(e.cfg.Type, "", p.Name, p.Version, nil, "")
	return pu.ToString()
}

// Metadata returns the bounded metadata object for the record's entry: the
// disallowed-for-purl keys, capped at the schema's field ceiling. On
// overflow only the first keys in sorted order are retained; the rest are
// dropped whole, never partially encoded.
func (e *Encoder) Metadata(p *depgraph.Package) map[string]string {
	out := make(map[string]string)
	for key := range e.disallowed {
		if value, ok := p.Metadata[key]; ok {
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}

	if len(out) > e.cfg.MaxMetadataFields {
		e.logger.Warn("metadata exceeds field ceiling, truncating",
			"package", p.Name, "fields", len(out), "ceiling", e.cfg.MaxMetadataFields)
		keys := slices.Sorted(maps.Keys(out))
		for _, key := range keys[e.cfg.MaxMetadataFields:] {
			delete(out, key)
		}
	}

	return out
}
