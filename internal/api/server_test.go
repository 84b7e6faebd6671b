package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/orchestrator"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(NewReportStore(), nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestStatusBeforeAnyRun(t *testing.T) {
	t.Parallel()

	srv := NewServer(NewReportStore(), nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusReturnsLatestReport(t *testing.T) {
	t.Parallel()

	reports := NewReportStore()
	reports.Set(orchestrator.RunReport{
		RunID:     "run-1",
		StartTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Terminal:  "complete",
	})
	reports.Set(orchestrator.RunReport{
		RunID:    "run-2",
		Terminal: "aborted",
		Reason:   "systemic_corruption",
	})

	srv := NewServer(reports, nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var report orchestrator.RunReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Equal(t, "run-2", report.RunID)
	require.Equal(t, "aborted", report.Terminal)
	require.Equal(t, "systemic_corruption", report.Reason)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := NewServer(NewReportStore(), nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "go_") ||
		strings.Contains(rr.Body.String(), "pipeline_"))
}
