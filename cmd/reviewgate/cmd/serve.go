package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	gatehttp "github.com/reviewgate/reviewgate/internal/adapter/inbound/http"
	"github.com/reviewgate/reviewgate/internal/adapter/outbound/lock"
	"github.com/reviewgate/reviewgate/internal/config"
	"github.com/reviewgate/reviewgate/internal/domain/enforce"
	"github.com/reviewgate/reviewgate/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operational HTTP server (metrics, health, gate checks)",
	Long: `Run the operational HTTP server.

Serves Prometheus metrics on /metrics, a health check on /healthz, and the
enforcement gates on POST /check/{strict|enforced|shelve}?change=N&user=U.
The health check pings the configured storage backend; checks run through
the same stores and advisory change lock as the check command, so trigger
scripts may call either.

Example:
  reviewgate serve
  curl http://localhost:9188/healthz
  curl -X POST 'http://localhost:9188/check/enforced?change=1234&user=alice'`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := gatehttp.NewMetrics(reg)

	resolver := service.NewResolver(st.workflows, st.projects, logger)
	exclusions := service.NewExclusionEvaluator(st.groups, logger)
	enforcer := service.NewEnforcer(
		resolver, exclusions,
		st.changes, st.reviews, st.affected, st.content,
		cfg.Workflow.Enabled, logger,
		service.WithEndStates(cfg.Workflow.EndStates),
		service.WithCheckRecorder(metrics),
	)

	// Same lock directory as the check command, so HTTP-driven and
	// CLI-driven checks for one change exclude each other.
	locker := lock.NewFileLock(lockDir(cfg), logger)
	checker := func(ctx context.Context, gate string, changeID int64, user string) (enforce.Result, error) {
		release := locker.Lock(changeID)
		defer release()
		switch gate {
		case "strict":
			return enforcer.CheckStrict(ctx, changeID, user)
		case "shelve":
			return enforcer.CheckShelve(ctx, changeID, user)
		default:
			return enforcer.CheckEnforced(ctx, changeID, user)
		}
	}

	var pinger gatehttp.Pinger
	if st.sqlite != nil {
		pinger = st.sqlite
	}
	server := gatehttp.NewServer(cfg.Server.MetricsAddr, reg, pinger, checker, Version, logger)

	// stop() restores default signal handling so a second Ctrl+C exits hard.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		stop()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
