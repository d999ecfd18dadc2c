package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/shipgraph/shipgraph/pkg/errors"
	"github.com/shipgraph/shipgraph/pkg/github"
	"github.com/shipgraph/shipgraph/pkg/snapshot"
)

const testGraph = `{
  "graph": {
    "nodes": {
      "0": {"id": 0, "ref": "conanfile", "dependencies": {"1": {"ref": "libA/1.2"}}},
      "1": {
        "id": 1,
        "ref": "libA/1.2#abc",
        "settings": {"os": "Linux"},
        "dependencies": {}
      }
    }
  }
}`

// initTestRepo creates a repository with one commit containing the given
// files and an origin remote pointing at github.com/acme/widgets.
func initTestRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	raw, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := raw.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(filepath.FromSlash(name)); err != nil {
			t.Fatal(err)
		}
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = raw.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/acme/widgets.git"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

// writeFakeConan installs a shell script standing in for the conan
// executable. It answers --version and prints graph for everything else,
// recording each invocation in calls.log next to itself.
func writeFakeConan(t *testing.T, dir, graph string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake conan script needs a POSIX shell")
	}
	path := filepath.Join(dir, "fake-conan")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"" + filepath.Join(dir, "calls.log") + "\"\n" +
		"if [ \"$1\" = \"--version\" ]; then\n" +
		"  echo \"Conan version 2.4.1\"\n" +
		"  exit 0\n" +
		"fi\n" +
		"cat <<'GRAPH'\n" + graph + "\nGRAPH\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func fakeConanCalls(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "calls.log"))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatal(err)
	}
	return string(data)
}

func clearCIEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GITHUB_SHA", "")
	t.Setenv("GITHUB_REF", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
}

func TestExecuteDryRun(t *testing.T) {
	clearCIEnv(t)
	dir := initTestRepo(t, map[string]string{"conanfile.py": "from conan import ConanFile"})
	conanPath := writeFakeConan(t, dir, testGraph)

	r := NewRunner(nil)
	result, err := r.Execute(context.Background(), Options{
		RepoPath:  dir,
		Token:     "test-token",
		ConanPath: conanPath,
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Owner != "acme" || result.Repo != "widgets" {
		t.Errorf("owner/repo = %s/%s", result.Owner, result.Repo)
	}
	if result.Submitted {
		t.Error("dry run must not submit")
	}
	if result.ManifestPath != "conanfile.py" {
		t.Errorf("ManifestPath = %q", result.ManifestPath)
	}
	want := "https://api.github.com/repos/acme/widgets/dependency-graph/snapshots"
	if result.SubmissionURL != want {
		t.Errorf("SubmissionURL = %q, want %q", result.SubmissionURL, want)
	}
	if result.Stats.PackageCount != 1 || result.Stats.DirectCount != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(result.Payload, &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Sha) != 40 {
		t.Errorf("Sha = %q, want HEAD commit", snap.Sha)
	}
	if !strings.HasPrefix(snap.Ref, "refs/heads/") {
		t.Errorf("Ref = %q", snap.Ref)
	}
	if snap.Detector.Version != "2.4.1" {
		t.Errorf("Detector.Version = %q", snap.Detector.Version)
	}
	dep := snap.Manifests["conanfile.py"].Resolved["libA"]
	if dep.PackageURL != "pkg:conan/libA@1.2?id=1&os=Linux&rrev=abc" {
		t.Errorf("PackageURL = %q", dep.PackageURL)
	}
	if dep.Relationship != "direct" {
		t.Errorf("Relationship = %q", dep.Relationship)
	}
}

func TestExecuteSubmits(t *testing.T) {
	clearCIEnv(t)
	dir := initTestRepo(t, map[string]string{"conanfile.txt": "[requires]\nlibA/1.2"})
	conanPath := writeFakeConan(t, dir, testGraph)

	var gotOwner, gotRepo string
	r := NewRunner(nil)
	r.submit = func(ctx context.Context, c *github.Client, owner, repo string, snap *snapshot.Snapshot) error {
		gotOwner, gotRepo = owner, repo
		return nil
	}

	result, err := r.Execute(context.Background(), Options{
		RepoPath:  dir,
		Token:     "test-token",
		ConanPath: conanPath,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Submitted {
		t.Error("Submitted = false after successful submit")
	}
	if gotOwner != "acme" || gotRepo != "widgets" {
		t.Errorf("submitted to %s/%s", gotOwner, gotRepo)
	}
}

func TestExecuteRequiresToken(t *testing.T) {
	clearCIEnv(t)
	dir := initTestRepo(t, map[string]string{"conanfile.py": "x"})

	_, err := NewRunner(nil).Execute(context.Background(), Options{
		RepoPath: dir,
		DryRun:   true,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.GetCode(err) != errors.ErrCodeNoToken {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeNoToken)
	}
}

func TestExecuteShaAndRefOverrides(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITHUB_REF", "refs/heads/feature")
	dir := initTestRepo(t, map[string]string{"conanfile.py": "x"})
	conanPath := writeFakeConan(t, dir, testGraph)

	result, err := NewRunner(nil).Execute(context.Background(), Options{
		RepoPath:  dir,
		Token:     "test-token",
		ConanPath: conanPath,
		Sha:       "feedface0000000000000000000000000000beef",
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Snapshot.Sha != "feedface0000000000000000000000000000beef" {
		t.Errorf("Sha = %q", result.Snapshot.Sha)
	}
	if result.Snapshot.Ref != "refs/heads/feature" {
		t.Errorf("Ref = %q", result.Snapshot.Ref)
	}
}

func TestExecuteNoManifest(t *testing.T) {
	clearCIEnv(t)
	dir := initTestRepo(t, map[string]string{"README.md": "no conanfile here"})

	_, err := NewRunner(nil).Execute(context.Background(), Options{
		RepoPath: dir,
		Token:    "test-token",
		DryRun:   true,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.GetCode(err) != errors.ErrCodeManifestNotFound {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeManifestNotFound)
	}
}

func TestExecuteGraphfileStandsInForManifest(t *testing.T) {
	clearCIEnv(t)
	dir := initTestRepo(t, map[string]string{"README.md": "resolved elsewhere"})
	graphPath := filepath.Join(dir, "graph.json")
	if err := os.WriteFile(graphPath, []byte(testGraph), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := NewRunner(nil).Execute(context.Background(), Options{
		RepoPath:  dir,
		Graphfile: graphPath,
		Token:     "test-token",
		ConanPath: filepath.Join(dir, "no-such-conan"),
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.ManifestPath != "graph.json" {
		t.Errorf("ManifestPath = %q", result.ManifestPath)
	}
	resolved := result.Snapshot.Manifests["graph.json"].Resolved
	if _, ok := resolved["libA"]; !ok {
		t.Errorf("resolved = %v, want graphfile contents", resolved)
	}
}

func TestExecuteConanfileWinsOverGraphfile(t *testing.T) {
	clearCIEnv(t)
	dir := initTestRepo(t, map[string]string{"conanfile.py": "from conan import ConanFile"})
	conanGraph := strings.ReplaceAll(testGraph, "libA", "fromconan")
	conanPath := writeFakeConan(t, dir, conanGraph)

	graphPath := filepath.Join(dir, "stale-graph.json")
	if err := os.WriteFile(graphPath, []byte(testGraph), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := NewRunner(nil).Execute(context.Background(), Options{
		RepoPath:  dir,
		Graphfile: graphPath,
		Token:     "test-token",
		ConanPath: conanPath,
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	resolved := result.Snapshot.Manifests["conanfile.py"].Resolved
	if _, ok := resolved["fromconan"]; !ok {
		t.Errorf("resolved = %v, want the live resolver's graph", resolved)
	}
	if _, ok := resolved["libA"]; ok {
		t.Error("graphfile contents used even though a conanfile is present")
	}
	if calls := fakeConanCalls(t, dir); !strings.Contains(calls, "graph info") {
		t.Errorf("conan was not invoked, calls = %q", calls)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.RepoPath != "." || opts.Target != "." {
		t.Errorf("paths = %q %q", opts.RepoPath, opts.Target)
	}
	if opts.Server != "github.com" {
		t.Errorf("Server = %q", opts.Server)
	}
	if opts.ConanPath != "conan" {
		t.Errorf("ConanPath = %q", opts.ConanPath)
	}
	if opts.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func TestOptionsRejectsBadServer(t *testing.T) {
	opts := Options{Server: "https://github.com"}
	err := opts.ValidateAndSetDefaults()
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.GetCode(err) != errors.ErrCodeBadConfig {
		t.Errorf("code = %q", errors.GetCode(err))
	}
}
