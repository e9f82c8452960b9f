package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/reviewgate/reviewgate/internal/adapter/outbound/lock"
	"github.com/reviewgate/reviewgate/internal/config"
	"github.com/reviewgate/reviewgate/internal/domain/enforce"
	"github.com/reviewgate/reviewgate/internal/service"
)

var (
	checkChangeID      int64
	checkUser          string
	checkRaiseDisabled bool
	checkTrace         bool
)

var checkCmd = &cobra.Command{
	Use:   "check <strict|enforced|shelve>",
	Short: "Run an enforcement gate against a change",
	Long: `Run one of the three enforcement gates against a pending change.

Gates:
  enforced   submit-time gate: requires/creates/links a review per the
             merged workflow rules
  strict     commit-time gate: enforced, plus the change content must match
             the review head content
  shelve     shelve-time gate: only the end-rule check applies

The command prints the resulting status and messages. Exit code 0 means the
change may proceed (including when a review was auto-created or linked);
a policy rejection exits 1.

Intended for version-control trigger scripts:
  reviewgate check enforced --change 1234 --user alice`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"strict", "enforced", "shelve"},
	RunE:      runCheck,
}

func init() {
	checkCmd.Flags().Int64Var(&checkChangeID, "change", 0, "change id to gate (required)")
	checkCmd.Flags().StringVar(&checkUser, "user", "", "acting user id (required)")
	checkCmd.Flags().BoolVar(&checkRaiseDisabled, "raise-disabled", false,
		"fail when workflow enforcement is administratively disabled instead of passing")
	checkCmd.Flags().BoolVar(&checkTrace, "trace", false,
		"emit resolution and gate spans to stderr")
	_ = checkCmd.MarkFlagRequired("change")
	_ = checkCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	gate, err := parseGate(args[0])
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

	ctx := context.Background()

	var resolverOpts []service.ResolverOption
	opts := []service.EnforcerOption{service.WithEndStates(cfg.Workflow.EndStates)}
	if checkTrace {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(cmd.ErrOrStderr()),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		defer func() { _ = tp.Shutdown(ctx) }()
		tracer := tp.Tracer("reviewgate")
		resolverOpts = append(resolverOpts, service.WithResolverTracer(tracer))
		opts = append(opts, service.WithEnforcerTracer(tracer))
	}
	if checkRaiseDisabled {
		opts = append(opts, service.WithRaiseDisabled())
	}

	resolver := service.NewResolver(st.workflows, st.projects, logger, resolverOpts...)
	exclusions := service.NewExclusionEvaluator(st.groups, logger)
	enforcer := service.NewEnforcer(
		resolver, exclusions,
		st.changes, st.reviews, st.affected, st.content,
		cfg.Workflow.Enabled, logger, opts...,
	)

	// Each trigger invocation is its own process, so the advisory lock
	// lives in the filesystem beside the database: only one concurrent
	// check for a change can decide to auto-create a review.
	locker := lock.NewFileLock(lockDir(cfg), logger)
	release := locker.Lock(checkChangeID)
	defer release()

	var result enforce.Result
	switch gate {
	case service.GateStrict:
		result, err = enforcer.CheckStrict(ctx, checkChangeID, checkUser)
	case service.GateEnforced:
		result, err = enforcer.CheckEnforced(ctx, checkChangeID, checkUser)
	case service.GateShelve:
		result, err = enforcer.CheckShelve(ctx, checkChangeID, checkUser)
	}
	if errors.Is(err, enforce.ErrDisabled) {
		return err
	}
	if err != nil {
		return fmt.Errorf("check %s failed: %w", gate, err)
	}

	fmt.Printf("status: %s\n", result.Status)
	for _, msg := range result.Messages {
		fmt.Printf("  %s\n", msg)
	}
	if !result.Allowed() {
		return fmt.Errorf("change %d blocked: %s", checkChangeID, result.Status)
	}
	return nil
}

// lockDir is the directory holding per-change lock files. Every process
// gating the same repository must agree on it, so it sits beside the
// database file; the memory driver has no shared file to sit beside and
// falls back to the system temp directory.
func lockDir(cfg *config.Config) string {
	if cfg.Storage.Driver == "sqlite" {
		return filepath.Dir(cfg.Storage.Path)
	}
	return os.TempDir()
}

func parseGate(s string) (service.Gate, error) {
	switch s {
	case "strict":
		return service.GateStrict, nil
	case "enforced":
		return service.GateEnforced, nil
	case "shelve":
		return service.GateShelve, nil
	default:
		return "", fmt.Errorf("unknown gate %q (want strict, enforced, or shelve)", s)
	}
}
