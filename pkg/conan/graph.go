// Package conan adapts the output of the conan resolver into depgraph
// records. It covers the three external collaborator surfaces the pipeline
// needs from the conan ecosystem: invoking `conan graph info`, locating a
// conanfile in a repository, and parsing the resolver's flat node map.
package conan

import (
	"encoding/json"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/shipgraph/shipgraph/pkg/depgraph"
)

// Document is the resolver's JSON output shape. The pipeline does not care
// whether it came from a live `conan graph info` run or a pre-made file, as
// long as it parses into this structure.
type Document struct {
	Graph struct {
		Nodes map[string]json.RawMessage `json:"nodes"`
	} `json:"graph"`
}

// structuralKeys are node fields that are either consumed by dedicated
// parsing (ref, settings, options, dependencies) or too deeply nested to
// flatten into scalar metadata (cpp_info and the option definition maps).
var structuralKeys = map[string]struct{}{
	"ref":                 {},
	"settings":            {},
	"cpp_info":            {},
	"options_definitions": {},
	"default_options":     {},
	"options":             {},
	"dependencies":        {},
}

// ParseGraph turns the resolver's node map into the record arena.
//
// Nodes missing an "id" or "ref" are metadata-only entries the format may
// emit and are skipped silently. A node whose required keys are malformed is
// logged as a parse failure and skipped; parsing continues for the remaining
// nodes. The returned table is keyed by node index.
func ParseGraph(doc *Document, logger *log.Logger) depgraph.Table {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	table := make(depgraph.Table, len(doc.Graph.Nodes))
	for index, raw := range doc.Graph.Nodes {
		idx, err := strconv.Atoi(index)
		if err != nil {
			logger.Error("node index is not an integer, skipping node", "index", index)
			continue
		}

		rec, err := parseNode(raw)
		if err != nil {
			logger.Error("malformed graph node, skipping", "index", index, "err", err)
			continue
		}
		if rec == nil {
			logger.Debug("node has no id or ref, skipping", "index", index)
			continue
		}

		table[idx] = rec
	}

	return table
}

// parseNode parses one node object. It returns (nil, nil) for metadata-only
// entries that lack an id or ref.
func parseNode(raw json.RawMessage) (*depgraph.Package, error) {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}

	idVal, ok := entry["id"]
	if !ok {
		return nil, nil
	}
	id, err := toInt(idVal)
	if err != nil {
		return nil, err
	}

	refVal, ok := entry["ref"]
	if !ok {
		return nil, nil
	}
	ref, ok := refVal.(string)
	if !ok {
		return nil, &fieldError{key: "ref", val: refVal}
	}

	name, version, revision := splitRef(ref)

	metadata := make(map[string]string)
	flattenInto(metadata, entry["settings"])
	flattenInto(metadata, entry["options"])
	for key, val := range entry {
		if _, structural := structuralKeys[key]; structural {
			continue
		}
		if s, scalar := scalarString(val); scalar {
			metadata[key] = s
		}
	}

	var scope depgraph.Scope
	if context, ok := metadata["context"]; ok {
		if context == "build" {
			scope = depgraph.ScopeDevelopment
		} else {
			scope = depgraph.ScopeRuntime
		}
	}

	deps, err := dependencyIndexes(entry["dependencies"])
	if err != nil {
		return nil, err
	}

	return &depgraph.Package{
		ID:           id,
		Name:         name,
		Version:      version,
		Revision:     revision,
		Scope:        scope,
		Metadata:     metadata,
		Dependencies: deps,
	}, nil
}

// splitRef parses a conan reference of the form name, name/version, or
// name/version#revision. Absent separators leave the later parts empty.
func splitRef(ref string) (name, version, revision string) {
	name, remainder, found := strings.Cut(ref, "/")
	if !found {
		return ref, "", ""
	}
	version, revision, _ = strings.Cut(remainder, "#")
	return name, version, revision
}

// flattenInto copies a nested string mapping (settings or options) into the
// metadata map, skipping null-valued entries.
func flattenInto(metadata map[string]string, val any) {
	nested, ok := val.(map[string]any)
	if !ok {
		return
	}
	for key, v := range nested {
		if s, scalar := scalarString(v); scalar {
			metadata[key] = s
		}
	}
}

// dependencyIndexes extracts the dependency ids from the node's
// "dependencies" mapping. Only the keys matter; the edge metadata values are
// not used. Ids are sorted so downstream traversal order is deterministic.
func dependencyIndexes(val any) ([]int, error) {
	if val == nil {
		return nil, nil
	}
	deps, ok := val.(map[string]any)
	if !ok {
		return nil, &fieldError{key: "dependencies", val: val}
	}
	ids := make([]int, 0, len(deps))
	for key := range deps {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// scalarString renders a scalar JSON value as a string. Null, objects and
// arrays report false.
func scalarString(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// toInt converts a node id that may arrive as a JSON number or string.
func toInt(val any) (int, error) {
	switch v := val.(type) {
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	case json.Number:
		i, err := v.Int64()
		return int(i), err
	}
	return 0, &fieldError{key: "id", val: val}
}

// fieldError reports a node field with an unusable type.
type fieldError struct {
	key string
	val any
}

func (e *fieldError) Error() string {
	return "unexpected type for " + strconv.Quote(e.key)
}
