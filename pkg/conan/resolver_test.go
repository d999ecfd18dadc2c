package conan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/shipgraph/shipgraph/pkg/errors"
)

// fakeConan writes an executable shell script standing in for the conan
// binary and returns its path.
func fakeConan(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake resolver scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "conan")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolverVersion(t *testing.T) {
	path := fakeConan(t, `echo "Conan version 2.4.1"`)
	r := NewResolver(path, "", nil)

	got, err := r.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if got != "2.4.1" {
		t.Errorf("Version = %q, want 2.4.1", got)
	}
}

func TestResolverVersionFailure(t *testing.T) {
	path := fakeConan(t, `echo "boom" >&2; exit 1`)
	r := NewResolver(path, "", nil)

	if _, err := r.Version(context.Background()); !errors.Is(err, errors.ErrCodeResolverNotFound) {
		t.Errorf("Version error = %v, want RESOLVER_NOT_FOUND", err)
	}
}

func TestGraphInfo(t *testing.T) {
	path := fakeConan(t, `echo '{"graph": {"nodes": {"0": {"id": 0, "ref": "conanfile"}}}}'`)
	r := NewResolver(path, "", nil)

	doc, err := r.GraphInfo(context.Background(), "conanfile.py")
	if err != nil {
		t.Fatalf("GraphInfo: %v", err)
	}
	if len(doc.Graph.Nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(doc.Graph.Nodes))
	}
}

func TestGraphInfoToleratesNonZeroExit(t *testing.T) {
	// Conflict errors exit non-zero but still emit a graph on stdout.
	path := fakeConan(t, `echo '{"graph": {"nodes": {}}}'; echo "ERROR: version conflict" >&2; exit 1`)
	r := NewResolver(path, "", nil)

	if _, err := r.GraphInfo(context.Background(), "conanfile.py"); err != nil {
		t.Errorf("GraphInfo should tolerate non-zero exit with usable output, got %v", err)
	}
}

func TestGraphInfoMissingConanfile(t *testing.T) {
	path := fakeConan(t, `echo "ERROR: No such file or directory: conanfile.py" >&2; exit 1`)
	r := NewResolver(path, "", nil)

	_, err := r.GraphInfo(context.Background(), "conanfile.py")
	if !errors.Is(err, errors.ErrCodeManifestNotFound) {
		t.Errorf("GraphInfo error = %v, want MANIFEST_NOT_FOUND", err)
	}
}

func TestGraphInfoBadOutput(t *testing.T) {
	path := fakeConan(t, `echo "this is not json"`)
	r := NewResolver(path, "", nil)

	_, err := r.GraphInfo(context.Background(), "conanfile.py")
	if !errors.Is(err, errors.ErrCodeResolverBadOutput) {
		t.Errorf("GraphInfo error = %v, want RESOLVER_BAD_OUTPUT", err)
	}
}

func TestGraphInfoMissingExecutable(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "no-such-conan"), "", nil)

	_, err := r.GraphInfo(context.Background(), "conanfile.py")
	if !errors.Is(err, errors.ErrCodeResolverNotFound) {
		t.Errorf("GraphInfo error = %v, want RESOLVER_NOT_FOUND", err)
	}
}

func TestGraphInfoForwardsProfile(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	path := fakeConan(t, `echo "$@" > `+argsFile+`; echo '{"graph": {"nodes": {}}}'`)
	r := NewResolver(path, "myprofile", nil)

	if _, err := r.GraphInfo(context.Background(), "conanfile.py"); err != nil {
		t.Fatalf("GraphInfo: %v", err)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(args), "--profile:build=myprofile") {
		t.Errorf("conan args = %q, want --profile:build=myprofile", args)
	}
}

func TestLoadGraphFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte(`{"graph": {"nodes": {"0": {"id": 0, "ref": "conanfile"}}}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadGraphFile(path)
	if err != nil {
		t.Fatalf("LoadGraphFile: %v", err)
	}
	if len(doc.Graph.Nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(doc.Graph.Nodes))
	}
}

func TestLoadGraphFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGraphFile(filepath.Join(t.TempDir(), "absent.json"))
		if !errors.Is(err, errors.ErrCodeResolverBadOutput) {
			t.Errorf("error = %v, want RESOLVER_BAD_OUTPUT", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graph.json")
		if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadGraphFile(path)
		if !errors.Is(err, errors.ErrCodeResolverBadOutput) {
			t.Errorf("error = %v, want RESOLVER_BAD_OUTPUT", err)
		}
	})
}
