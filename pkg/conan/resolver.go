package conan

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/shipgraph/shipgraph/pkg/errors"
)

// missingFilePrefix is the stderr prefix conan emits when the conanfile it
// was pointed at does not exist. This specific failure is fatal; other
// non-zero exits (version conflicts, for example) still produce a usable
// graph on stdout and are tolerated.
const missingFilePrefix = "ERROR: No such file or directory:"

// Resolver invokes the external conan executable.
type Resolver struct {
	path    string
	profile string
	logger  *log.Logger
}

// NewResolver creates a resolver for the given executable path. An empty
// path defaults to "conan" on PATH. profile, when non-empty, is forwarded
// to conan as --profile:build.
func NewResolver(path, profile string, logger *log.Logger) *Resolver {
	if path == "" {
		path = "conan"
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Resolver{path: path, profile: profile, logger: logger}
}

// GraphInfo runs `conan graph info <conanfile> --format=json` and parses
// the resulting document.
//
// The subprocess runs with a scrubbed environment: only PATH passes
// through, so repository-controlled conanfiles cannot read secrets from the
// caller's environment.
func (r *Resolver) GraphInfo(ctx context.Context, conanfile string) (*Document, error) {
	args := []string{"graph", "info", conanfile, "--format=json"}
	if r.profile != "" {
		args = append(args, "--profile:build="+r.profile)
	}

	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if !stderrors.As(err, &exitErr) {
			return nil, errors.Wrap(errors.ErrCodeResolverNotFound, err, "run %s", r.path)
		}
		if strings.HasPrefix(errText, missingFilePrefix) {
			return nil, errors.New(errors.ErrCodeManifestNotFound, "conan cannot find conanfile: %s", conanfile)
		}
		// Some dependency conflicts exit non-zero but still emit a graph.
		r.logger.Debug("conan graph info exited non-zero", "stderr", errText)
	}

	doc, err := decodeDocument(stdout.Bytes())
	if err != nil {
		r.logger.Debug("conan graph info stdout", "output", stdout.String())
		return nil, errors.Wrap(errors.ErrCodeResolverBadOutput, err, "conan graph info output is not valid JSON")
	}
	return doc, nil
}

// Version returns the conan version string from `conan --version`
// (e.g. "2.4.1").
func (r *Resolver) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, r.path, "--version")
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Wrap(errors.ErrCodeResolverNotFound, err, "conan --version failed: %s", strings.TrimSpace(stderr.String()))
	}

	fields := strings.Fields(stdout.String())
	if len(fields) == 0 {
		return "", errors.New(errors.ErrCodeResolverBadOutput, "conan --version produced no output")
	}
	// Output is "Conan version X.Y.Z"; take the trailing field so the
	// parse survives wording changes between conan releases.
	return fields[len(fields)-1], nil
}

// LoadGraphFile reads a pre-made `conan graph info --format=json` document
// from disk.
func LoadGraphFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResolverBadOutput, err, "cannot open graphfile %s", path)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResolverBadOutput, err, "graphfile %s is not valid JSON", path)
	}
	return doc, nil
}

func decodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
