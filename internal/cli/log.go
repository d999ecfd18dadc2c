// Package cli implements the shipgraph command-line interface.
//
// This package provides the submit command, which runs the full resolve and
// submission pipeline, plus shell completion generation. The CLI is built
// using cobra and supports debug logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - submit: Resolve the conan dependency graph and submit it to GitHub
//   - completion: Generate shell completion scripts
//
// # Logging
//
// All commands support --debug (-d) for debug-level logging. Progress is
// reported on stderr so stdout stays clean for payload output in dry runs.
//
// # Example
//
//	c := cli.New(os.Stderr, cli.LogInfo)
//	root := c.RootCommand()
//	if err := root.ExecuteContext(ctx); err != nil {
//	    os.Exit(1)
//	}
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with
// elapsed duration. Safe for sequential use by a single goroutine.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since the tracker was created,
// rounded to the nearest millisecond.
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
