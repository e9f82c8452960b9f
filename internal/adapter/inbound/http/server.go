package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
)

// Pinger verifies that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckFunc runs one enforcement gate for a change on behalf of an HTTP
// caller. gate is one of strict, enforced, or shelve; the caller validates
// it before invoking.
type CheckFunc func(ctx context.Context, gate string, changeID int64, user string) (enforce.Result, error)

// CheckResponse is the JSON response from the /check endpoint.
type CheckResponse struct {
	Status   string   `json:"status"`
	Messages []string `json:"messages,omitempty"`
	Allowed  bool     `json:"allowed"`
}

// HealthResponse is the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status  string            `json:"status"` // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// Server is the operational HTTP listener: /metrics, /healthz, and the gate
// endpoint POST /check/{gate} when a checker is configured.
type Server struct {
	srv     *http.Server
	logger  *slog.Logger
	store   Pinger
	checker CheckFunc
	version string
}

// NewServer creates the operational server on addr, serving metrics from the
// given gatherer. store may be nil when no backing store is configured;
// checker may be nil to leave the gate endpoint unregistered.
func NewServer(addr string, gatherer prometheus.Gatherer, store Pinger, checker CheckFunc, version string, logger *slog.Logger) *Server {
	s := &Server{
		logger:  logger,
		store:   store,
		checker: checker,
		version: version,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)
	if checker != nil {
		mux.HandleFunc("POST /check/{gate}", s.handleCheck)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"goroutines": fmt.Sprintf("%d", runtime.NumGoroutine()),
	}
	healthy := true

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			checks["store"] = "unreachable: " + err.Error()
			healthy = false
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not configured"
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: s.version,
	})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	gate := r.PathValue("gate")
	switch gate {
	case "strict", "enforced", "shelve":
	default:
		http.Error(w, fmt.Sprintf("unknown gate %q", gate), http.StatusBadRequest)
		return
	}
	changeID, err := strconv.ParseInt(r.URL.Query().Get("change"), 10, 64)
	if err != nil || changeID <= 0 {
		http.Error(w, "change must be a positive integer", http.StatusBadRequest)
		return
	}
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	result, err := s.checker(r.Context(), gate, changeID, user)
	if err != nil {
		s.logger.Error("check failed", "gate", gate, "change", changeID, "error", err)
		http.Error(w, "check failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	code := http.StatusOK
	if !result.Allowed() {
		code = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(CheckResponse{
		Status:   string(result.Status),
		Messages: result.Messages,
		Allowed:  result.Allowed(),
	})
}

// Start begins serving. It blocks until the listener stops and returns nil
// on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("operational server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("operational server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
