// Package pkg provides the core libraries for shipgraph dependency submission.
//
// # Overview
//
// Shipgraph turns a repository's conan dependency graph into a snapshot for
// the GitHub Dependency Graph Submission API, so Dependabot alerts and the
// dependency view cover C and C++ packages. The pkg directory is organized
// into three main areas:
//
//  1. Domain logic - graph normalization and identifier encoding
//  2. Collaborators - conan, git and the GitHub API
//  3. Orchestration - the end-to-end pipeline
//
// # Architecture
//
// The typical data flow through shipgraph:
//
//	conan graph info (JSON)
//	         ↓
//	    [conan] package (parse the flat node map)
//	         ↓
//	    [depgraph] package (rooted tree + relationship classification)
//	         ↓
//	    [purl] + [snapshot] packages (identifiers + payload assembly)
//	         ↓
//	    [github] package (POST to the submission API)
//
// # Main Packages
//
// [depgraph] - The record arena and rooted dependency tree. Builds the tree
// from the flat node map, drops dangling edges, and classifies each package
// as a direct or indirect dependency of the root.
//
// [conan] - Everything conan-facing: running `conan graph info`, locating a
// conanfile among a repository's tracked files, and parsing the resolver's
// JSON output into depgraph records.
//
// [purl] - Canonical package-url encoding for conan packages, including the
// qualifier schema and the bounded entry metadata object.
//
// [snapshot] - The submission payload types and the assembler that walks a
// classified tree into a deterministic snapshot.
//
// [gitrepo] - Repository context: HEAD commit, branch ref, origin remote and
// tracked-file enumeration, built on go-git.
//
// [github] - The Dependency Graph Submission API client, covering github.com
// and GitHub Enterprise Server.
//
// [pipeline] - The complete resolve → normalize → assemble → submit flow
// shared by the CLI.
//
// [errors] - Coded errors used across the module for exit handling and user
// messages.
//
// # Quick Start
//
// Run the full pipeline for the current repository:
//
//	runner := pipeline.NewRunner(logger)
//	result, err := runner.Execute(ctx, pipeline.Options{RepoPath: "."})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.SubmissionURL)
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/depgraph/... # Specific package
//
// [depgraph]: https://pkg.go.dev/github.com/shipgraph/shipgraph/pkg/depgraph
// [conan]: https://pkg.go.dev/github.com/shipgraph/shipgraph/pkg/conan
// [purl]: https://pkg.go.dev/github.com/shipgraph/shipgraph/pkg/purl
// [snapshot]: https://pkg.go.dev/github.com/shipgraph/shipgraph/pkg/snapshot
// [gitrepo]: https://pkg.go.dev/github.com/shipgraph/shipgraph/pkg/gitrepo
// [github]: https://pkg.go.dev/github.com/shipgraph/shipgraph/pkg/github
// [pipeline]: https://pkg.go.dev/github.com/shipgraph/shipgraph/pkg/pipeline
// [errors]: https://pkg.go.dev/github.com/shipgraph/shipgraph/pkg/errors
package pkg
