package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reviewgate/reviewgate/internal/config"
	"github.com/reviewgate/reviewgate/internal/domain/project"
	"github.com/reviewgate/reviewgate/internal/domain/review"
	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load workflows, projects, and review data from a YAML fixture",
	Long: `Load a YAML fixture file into the configured sqlite database.

The fixture may contain workflows, projects, changes (with their affected
project/branch lists), reviews, group memberships, test runs, and content
digests. Existing records with the same ids are overwritten. Useful for
bootstrapping a deployment or building a reproducible test bed:

  reviewgate seed testdata/fixture.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// fixture is the YAML shape of a seed file.
type fixture struct {
	Workflows []fixtureWorkflow `yaml:"workflows"`
	Projects  []fixtureProject  `yaml:"projects"`
	Changes   []fixtureChange   `yaml:"changes"`
	Reviews   []fixtureReview   `yaml:"reviews"`
	Groups    []fixtureGroup    `yaml:"groups"`
	TestRuns  []fixtureTestRun  `yaml:"test_runs"`
}

type fixtureWorkflow struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	OnSubmitWithReview    fixtureRule `yaml:"on_submit_with_review"`
	OnSubmitWithoutReview fixtureRule `yaml:"on_submit_without_review"`
	EndRuleUpdate         fixtureRule `yaml:"end_rule_update"`
	AutoApprove           fixtureRule `yaml:"auto_approve"`
	CountedVotes          fixtureRule `yaml:"counted_votes"`

	GroupExclusions fixtureExclusion    `yaml:"group_exclusions"`
	UserExclusions  fixtureExclusion    `yaml:"user_exclusions"`
	Tests           []workflow.TestRule `yaml:"tests"`
}

// fixtureRule accepts either a bare token or a {rule, mode} mapping, so
// non-global workflows read naturally.
type fixtureRule struct {
	Rule string `yaml:"rule"`
	Mode string `yaml:"mode"`
}

func (f *fixtureRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Rule = node.Value
		f.Mode = ""
		return nil
	}
	type plain fixtureRule
	return node.Decode((*plain)(f))
}

func (f fixtureRule) toDomain() workflow.RuleValue {
	mode := workflow.Mode(f.Mode)
	if mode == "" {
		mode = workflow.ModeDefault
	}
	return workflow.RuleValue{Rule: workflow.Rule(f.Rule), Mode: mode}
}

type fixtureExclusion struct {
	IDs  []string `yaml:"ids"`
	Mode string   `yaml:"mode"`
}

func (f fixtureExclusion) toDomain() workflow.ExclusionValue {
	mode := workflow.Mode(f.Mode)
	if mode == "" {
		mode = workflow.ModeDefault
	}
	return workflow.ExclusionValue{IDs: f.IDs, Mode: mode}
}

type fixtureProject struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	WorkflowID string          `yaml:"workflow"`
	Branches   []fixtureBranch `yaml:"branches"`
}

type fixtureBranch struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	WorkflowID string `yaml:"workflow"`
}

type fixtureChange struct {
	ID          int64               `yaml:"id"`
	User        string              `yaml:"user"`
	Description string              `yaml:"description"`
	Affected    map[string][]string `yaml:"affected"`
	Digest      string              `yaml:"digest"`
}

type fixtureReview struct {
	ID            int64   `yaml:"id"`
	State         string  `yaml:"state"`
	Author        string  `yaml:"author"`
	Description   string  `yaml:"description"`
	Changes       []int64 `yaml:"changes"`
	Commits       []int64 `yaml:"commits"`
	PendingCommit bool    `yaml:"pending_commit"`
	Digest        string  `yaml:"digest"`
}

type fixtureGroup struct {
	ID      string   `yaml:"id"`
	Members []string `yaml:"members"`
}

type fixtureTestRun struct {
	Review int64  `yaml:"review"`
	TestID string `yaml:"test"`
	Status string `yaml:"status"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("parse fixture %s: %w", args[0], err)
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
	if st.sqlite == nil {
		return fmt.Errorf("seed requires the sqlite storage driver, configured driver is %q", cfg.Storage.Driver)
	}
	db := st.sqlite

	ctx := context.Background()

	for _, fw := range fx.Workflows {
		w := workflow.Workflow{
			ID:          fw.ID,
			Name:        fw.Name,
			Description: fw.Description,

			OnSubmitWithReview:    fw.OnSubmitWithReview.toDomain(),
			OnSubmitWithoutReview: fw.OnSubmitWithoutReview.toDomain(),
			EndRuleUpdate:         fw.EndRuleUpdate.toDomain(),
			AutoApprove:           fw.AutoApprove.toDomain(),
			CountedVotes:          fw.CountedVotes.toDomain(),
			GroupExclusions:       fw.GroupExclusions.toDomain(),
			UserExclusions:        fw.UserExclusions.toDomain(),

			Tests: fw.Tests,
		}
		if err := db.SaveWorkflow(ctx, &w); err != nil {
			return fmt.Errorf("seed workflow %s: %w", fw.ID, err)
		}
	}

	for _, fp := range fx.Projects {
		p := project.Project{
			ID:         fp.ID,
			Name:       fp.Name,
			WorkflowID: fp.WorkflowID,
		}
		for _, fb := range fp.Branches {
			p.Branches = append(p.Branches, project.Branch{
				ID:         fb.ID,
				Name:       fb.Name,
				WorkflowID: fb.WorkflowID,
			})
		}
		if err := db.SaveProject(ctx, &p); err != nil {
			return fmt.Errorf("seed project %s: %w", fp.ID, err)
		}
	}

	for _, fc := range fx.Changes {
		c := review.Change{ID: fc.ID, User: fc.User, Description: fc.Description}
		if err := db.SaveChange(ctx, &c); err != nil {
			return fmt.Errorf("seed change %d: %w", fc.ID, err)
		}
		if len(fc.Affected) > 0 {
			if err := db.SetAffected(ctx, fc.ID, project.Affected(fc.Affected)); err != nil {
				return fmt.Errorf("seed change %d affected projects: %w", fc.ID, err)
			}
		}
		if fc.Digest != "" {
			if err := db.SetChangeDigest(ctx, fc.ID, fc.Digest); err != nil {
				return fmt.Errorf("seed change %d digest: %w", fc.ID, err)
			}
		}
	}

	for _, fr := range fx.Reviews {
		state := review.State(fr.State)
		if !review.ValidState(state) {
			return fmt.Errorf("seed review %d: unknown state %q", fr.ID, fr.State)
		}
		r := review.Review{
			ID:            fr.ID,
			State:         state,
			Author:        fr.Author,
			Description:   fr.Description,
			Changes:       fr.Changes,
			Commits:       fr.Commits,
			PendingCommit: fr.PendingCommit,
		}
		if err := db.SaveReview(ctx, &r); err != nil {
			return fmt.Errorf("seed review %d: %w", fr.ID, err)
		}
		if fr.Digest != "" {
			if err := db.SetReviewDigest(ctx, fr.ID, fr.Digest); err != nil {
				return fmt.Errorf("seed review %d digest: %w", fr.ID, err)
			}
		}
	}

	for _, fg := range fx.Groups {
		for _, member := range fg.Members {
			if err := db.AddGroupMember(ctx, fg.ID, member); err != nil {
				return fmt.Errorf("seed group %s: %w", fg.ID, err)
			}
		}
	}

	for _, ft := range fx.TestRuns {
		run := review.TestRun{TestID: ft.TestID, Status: review.TestStatus(ft.Status)}
		if err := db.SaveTestRun(ctx, ft.Review, run); err != nil {
			return fmt.Errorf("seed test run %s for review %d: %w", ft.TestID, ft.Review, err)
		}
	}

	logger.Info("fixture loaded",
		"workflows", len(fx.Workflows),
		"projects", len(fx.Projects),
		"changes", len(fx.Changes),
		"reviews", len(fx.Reviews),
	)
	return nil
}
