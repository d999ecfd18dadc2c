// Package cli implements the shipgraph command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shipgraph/shipgraph/pkg/buildinfo"
)

// appName is the application name used for config files and display.
const appName = "shipgraph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Shipgraph submits conan dependency graphs to GitHub",
		Long:         `Shipgraph resolves a repository's conan dependency graph and submits it to the GitHub Dependency Graph Submission API, so Dependabot alerts and the dependency view cover C and C++ packages.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.submitCommand())
	root.AddCommand(c.completionCommand())

	return root
}
