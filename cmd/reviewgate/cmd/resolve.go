package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reviewgate/reviewgate/internal/config"
	"github.com/reviewgate/reviewgate/internal/domain/project"
	"github.com/reviewgate/reviewgate/internal/domain/workflow"
	"github.com/reviewgate/reviewgate/internal/service"
)

var resolveRule string

var resolveCmd = &cobra.Command{
	Use:   "resolve <project[:branch]>...",
	Short: "Resolve the merged workflow for a set of projects and branches",
	Long: `Resolve the effective workflow for one or more project/branch targets
and print it as YAML.

Each argument is a project id, optionally qualified with a branch id:

  reviewgate resolve web web:stable billing

Targets without a branch resolve against the project-level workflow. With
--rule only the single named rule token is printed, which is what trigger
scripts typically want:

  reviewgate resolve --rule on_submit_with_review web:stable`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveRule, "rule", "",
		"print a single rule token instead of the full merged workflow")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	affected, err := parseTargets(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	resolver := service.NewResolver(st.workflows, st.projects, logger)
	ctx := context.Background()

	if resolveRule != "" {
		rule, err := resolver.ResolveRule(ctx, workflow.RuleID(resolveRule), affected, nil)
		if err != nil {
			return err
		}
		fmt.Println(rule)
		return nil
	}

	merged, err := resolver.ResolveForProjects(ctx, affected, nil)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(merged)
}

// parseTargets turns "project" and "project:branch" arguments into the
// affected-projects shape the resolver consumes.
func parseTargets(args []string) (project.Affected, error) {
	affected := make(project.Affected, len(args))
	for _, arg := range args {
		proj, branch, hasBranch := strings.Cut(arg, ":")
		if proj == "" {
			return nil, fmt.Errorf("invalid target %q: empty project id", arg)
		}
		if hasBranch && branch == "" {
			return nil, fmt.Errorf("invalid target %q: empty branch id", arg)
		}
		if hasBranch {
			affected[proj] = append(affected[proj], branch)
		} else if _, seen := affected[proj]; !seen {
			affected[proj] = nil
		}
	}
	return affected, nil
}
