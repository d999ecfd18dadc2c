package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/shipgraph/shipgraph/pkg/pipeline"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything written.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	w.Close()
	os.Stdout = orig
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestRunSubmitConfigErrorHint(t *testing.T) {
	c := New(io.Discard, LogInfo)

	var runErr error
	out := captureStdout(t, func() {
		runErr = c.runSubmit(context.Background(), pipeline.Options{
			RepoPath: t.TempDir(),
			Server:   "https://github.com",
		})
	})

	if runErr == nil {
		t.Fatal("expected error for a bad server value")
	}
	if !strings.Contains(out, "configuration") {
		t.Errorf("output = %q, want a configuration hint", out)
	}
}
