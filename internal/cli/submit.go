package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shipgraph/shipgraph/pkg/errors"
	"github.com/shipgraph/shipgraph/pkg/pipeline"
)

// submitCommand creates the submit command, the main entry point of the tool.
func (c *CLI) submitCommand() *cobra.Command {
	var configPath string
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "submit [repository]",
		Short: "Resolve the conan dependency graph and submit it to GitHub",
		Long: `Resolve the repository's conan dependency graph and submit it to the
GitHub Dependency Graph Submission API.

The repository argument defaults to the current directory. The conanfile is
located among the repository's tracked files, the graph is resolved with
'conan graph info', and the resulting snapshot is posted to the server the
origin remote points at.

An API token is read from GITHUB_TOKEN or GH_TOKEN.

Examples:
  shipgraph submit                                  # current directory
  shipgraph submit ~/src/myproject                  # explicit repository
  shipgraph submit --target src/engine             # restrict conanfile search
  shipgraph submit --graphfile graph.json --dry-run # pre-resolved graph, no POST`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.RepoPath = args[0]
			} else {
				opts.RepoPath = "."
			}

			cfg, err := loadFileConfig(configPath, opts.RepoPath)
			if err != nil {
				return err
			}
			cfg.apply(&opts, cmd.Flags().Changed)

			return c.runSubmit(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "directory to search for a conanfile (defaults to the repository)")
	cmd.Flags().StringVar(&opts.Server, "github-server", pipeline.DefaultServer, "GitHub server hostname")
	cmd.Flags().StringVar(&opts.ConanPath, "conan-path", pipeline.DefaultConanPath, "conan executable to run")
	cmd.Flags().StringVar(&opts.Profile, "conan-profile", "", "conan build profile forwarded to the resolver")
	cmd.Flags().StringVar(&opts.Conanfile, "conanfile", "", "explicit conanfile path, skips the search")
	cmd.Flags().StringVar(&opts.Graphfile, "graphfile", "", "pre-resolved graph JSON file, skips running conan")
	cmd.Flags().StringVar(&opts.Sha, "sha", "", "commit SHA to record (defaults to GITHUB_SHA, then HEAD)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "assemble and print the payload without submitting")
	cmd.Flags().StringVar(&configPath, "config", "", "config file (defaults to "+configName+" in the repository)")

	return cmd
}

// runSubmit executes the pipeline and reports the outcome.
func (c *CLI) runSubmit(ctx context.Context, opts pipeline.Options) error {
	opts.Logger = c.Logger
	runner := pipeline.NewRunner(c.Logger)

	spinner := newSpinnerWithContext(ctx, "Resolving dependencies...")
	spinner.Start()

	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		cancelled := spinner.Cancelled()
		spinner.StopWithError("Submission failed")
		if cancelled {
			return ctx.Err()
		}
		if errors.IsFatalConfig(err) {
			printDetail("check the repository, remote, and token configuration")
		}
		return fmt.Errorf("%s", errors.UserMessage(err))
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Resolved %d packages", result.Stats.PackageCount))

	if opts.DryRun {
		printSuccess("Assembled snapshot for %s/%s", result.Owner, result.Repo)
	} else {
		printSuccess("Submitted snapshot for %s/%s", result.Owner, result.Repo)
	}
	printKeyValue("manifest", result.ManifestPath)
	printKeyValue("sha", result.Snapshot.Sha)
	printKeyValue("ref", result.Snapshot.Ref)
	printLink("endpoint", result.SubmissionURL)
	printStats(result.Stats.PackageCount, result.Stats.DirectCount, result.Submitted)

	if opts.DryRun {
		var indented bytes.Buffer
		if err := json.Indent(&indented, result.Payload, "", "  "); err != nil {
			return err
		}
		indented.WriteByte('\n')
		if _, err := indented.WriteTo(os.Stdout); err != nil {
			return err
		}
	}

	return nil
}
