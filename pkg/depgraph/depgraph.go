// Package depgraph models a resolved package graph as an arena of records
// plus a tree of parent/child links rooted at the manifest node.
//
// The resolver's output is a flat adjacency list: every node carries an
// integer id and the ids of its declared dependencies. Records live in a
// single lookup [Table] indexed by id; the [Tree] holds only parent/child
// index references and never duplicates record data. Records that are never
// reached from the root stay in the table but get no tree links.
package depgraph

import (
	"io"
	"slices"

	"github.com/charmbracelet/log"
)

// RootID is the id of the manifest pseudo-node the resolver emits for the
// project itself. The tree is rooted there, and packages attached directly
// under it are "direct" dependencies.
const RootID = 0

// Scope describes when a dependency is needed.
type Scope string

const (
	// ScopeDevelopment marks build-context dependencies.
	ScopeDevelopment Scope = "development"
	// ScopeRuntime marks host-context dependencies.
	ScopeRuntime Scope = "runtime"
)

// Relationship describes how a package relates to the manifest root.
type Relationship string

const (
	// RelationshipDirect marks immediate children of the root.
	RelationshipDirect Relationship = "direct"
	// RelationshipIndirect marks transitive dependencies.
	RelationshipIndirect Relationship = "indirect"
)

// Package is one record of the resolved graph.
//
// Version and Revision are empty when the resolver's ref carried no
// version or revision separator. Scope and Relationship are empty until
// classification; both are set at most once after tree construction and are
// treated as immutable afterwards.
type Package struct {
	ID           int
	Name         string
	Version      string
	Revision     string
	Scope        Scope
	Relationship Relationship
	Metadata     map[string]string
	Dependencies []int // declared dependency ids, in resolver order
}

// Table is the id-indexed arena of all parsed records.
// It is a shared index used for traversal; the tree owns the links.
type Table map[int]*Package

// Tree is the parent/child structure reconstructed from the per-record
// dependency id lists. Each attached record has exactly one parent; cycles
// in the input cannot produce cycles here because attachment happens once
// per id in a single top-down pass.
type Tree struct {
	root     int
	table    Table
	parent   map[int]int
	children map[int][]int
}

// Build reconstructs the tree from table, rooted at root.
//
// The walk is an explicit worklist rather than recursion so adversarially
// deep graphs cannot exhaust the stack. A dependency id with no matching
// record is logged and its edge dropped; a record that is already attached
// is not re-attached (re-visitation is a no-op).
func Build(table Table, root int, logger *log.Logger) *Tree {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	t := &Tree{
		root:     root,
		table:    table,
		parent:   make(map[int]int),
		children: make(map[int][]int),
	}

	if _, ok := table[root]; !ok {
		logger.Error("no record for root index", "index", root)
		return t
	}

	stack := []int{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rec := table[cur]
		logger.Debug("attaching dependencies", "package", rec.Name, "children", rec.Dependencies)

		for _, dep := range rec.Dependencies {
			child, ok := table[dep]
			if !ok {
				logger.Error("no record for dependency index, dropping edge", "parent", rec.Name, "index", dep)
				continue
			}
			if dep == root {
				continue
			}
			if _, attached := t.parent[dep]; attached {
				logger.Debug("already attached, skipping", "package", child.Name)
				continue
			}
			t.parent[dep] = cur
			t.children[cur] = append(t.children[cur], dep)
			stack = append(stack, dep)
		}
	}

	return t
}

// Classify labels every attached non-root record as a direct or indirect
// dependency of the root. It must run after Build and is idempotent.
func (t *Tree) Classify() {
	for id, parent := range t.parent {
		rec := t.table[id]
		if parent == t.root {
			rec.Relationship = RelationshipDirect
		} else {
			rec.Relationship = RelationshipIndirect
		}
	}
}

// Root returns the root id the tree was built with.
func (t *Tree) Root() int { return t.root }

// Table returns the shared record lookup table.
func (t *Tree) Table() Table { return t.table }

// Attached reports whether id was reached from the root during Build.
// The root itself counts as attached.
func (t *Tree) Attached(id int) bool {
	if id == t.root {
		_, ok := t.table[id]
		return ok
	}
	_, ok := t.parent[id]
	return ok
}

// Parent returns the parent id of an attached record.
// The second result is false for the root and for unattached records.
func (t *Tree) Parent(id int) (int, bool) {
	p, ok := t.parent[id]
	return p, ok
}

// ChildIDs returns the attached children of id in attachment order.
// Unattached records have no children.
func (t *Tree) ChildIDs(id int) []int {
	return t.children[id]
}

// Children returns the attached child records of id.
func (t *Tree) Children(id int) []*Package {
	ids := t.children[id]
	out := make([]*Package, 0, len(ids))
	for _, cid := range ids {
		out = append(out, t.table[cid])
	}
	return out
}

// Size returns the number of attached records, including the root.
func (t *Tree) Size() int {
	if _, ok := t.table[t.root]; !ok {
		return 0
	}
	return len(t.parent) + 1
}

// IDs returns all table ids in ascending order. Useful for deterministic
// iteration over the arena.
func (t Table) IDs() []int {
	ids := make([]int, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
