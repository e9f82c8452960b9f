package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePinger implements Pinger with a canned result.
type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error {
	return p.err
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		store      Pinger
		wantCode   int
		wantStatus string
		wantCheck  string
	}{
		{
			name:       "healthy store",
			store:      &fakePinger{},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantCheck:  "ok",
		},
		{
			name:       "unreachable store",
			store:      &fakePinger{err: errors.New("database is locked")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantCheck:  "unreachable: database is locked",
		},
		{
			name:       "no store configured",
			store:      nil,
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantCheck:  "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewServer(":0", prometheus.NewRegistry(), tt.store, nil, "test", testLogger())
			rec := httptest.NewRecorder()
			s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Checks["store"] != tt.wantCheck {
				t.Errorf("Checks[store] = %q, want %q", resp.Checks["store"], tt.wantCheck)
			}
			if resp.Version != "test" {
				t.Errorf("Version = %q, want %q", resp.Version, "test")
			}
		})
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordCheck("enforced", "ok", 0.01)

	s := NewServer(":0", reg, nil, nil, "test", testLogger())
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "reviewgate_checks_total") {
		t.Error("metrics output missing reviewgate_checks_total")
	}
}

func TestServer_CheckEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		result   enforce.Result
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "allowed",
			target:   "/check/enforced?change=7&user=alice",
			result:   enforce.Result{Status: enforce.StatusOK},
			wantCode: http.StatusOK,
			wantBody: `"status":"ok"`,
		},
		{
			name:     "blocked",
			target:   "/check/strict?change=7&user=alice",
			result:   enforce.Result{Status: enforce.StatusNoReview, Messages: []string{"change 7 requires a review"}},
			wantCode: http.StatusConflict,
			wantBody: `"status":"no_review"`,
		},
		{
			name:     "unknown gate",
			target:   "/check/submit?change=7&user=alice",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing change",
			target:   "/check/enforced?user=alice",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing user",
			target:   "/check/enforced?change=7",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "checker error",
			target:   "/check/enforced?change=7&user=alice",
			err:      errors.New("storage offline"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := func(ctx context.Context, gate string, changeID int64, user string) (enforce.Result, error) {
				return tt.result, tt.err
			}
			s := NewServer(":0", prometheus.NewRegistry(), nil, checker, "test", testLogger())

			rec := httptest.NewRecorder()
			s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

// A checker recording through Metrics must surface its counters on the
// /metrics endpoint of the same server.
func TestServer_CheckEndpoint_CountersVisible(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	checker := func(ctx context.Context, gate string, changeID int64, user string) (enforce.Result, error) {
		m.RecordCheck(gate, string(enforce.StatusOK), 0.01)
		return enforce.Result{Status: enforce.StatusOK}, nil
	}
	s := NewServer(":0", reg, nil, checker, "test", testLogger())

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check/enforced?change=7&user=alice", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("check status code = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `reviewgate_checks_total{gate="enforced",status="ok"} 1`) {
		t.Errorf("metrics output missing the recorded check counter:\n%s", rec.Body.String())
	}
}

func TestServer_NoCheckerNoEndpoint(t *testing.T) {
	t.Parallel()

	s := NewServer(":0", prometheus.NewRegistry(), nil, nil, "test", testLogger())
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check/enforced?change=7&user=alice", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
