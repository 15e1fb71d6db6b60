package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txp-network/txp/internal/app/pipeline"
	"github.com/txp-network/txp/internal/infra/observability"
)

type fixedStats pipeline.Stats

func (f fixedStats) Stats() pipeline.Stats { return pipeline.Stats(f) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ─── Route Tests ────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	s := NewServer(nil, nil)
	w := get(t, s.Handler(), "/health")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestVersion(t *testing.T) {
	s := NewServer(nil, nil)
	assert.JSONEq(t, `{"version":"dev"}`, get(t, s.Handler(), "/api/version").Body.String())

	s.SetVersion("1.2.3")
	assert.JSONEq(t, `{"version":"1.2.3"}`, get(t, s.Handler(), "/api/version").Body.String())
}

func TestStats(t *testing.T) {
	s := NewServer(fixedStats{Records: 12, Workers: 3, Applied: 10, Skipped: 2, QueueCapacity: 32}, nil)
	s.SetRunID("run-42")

	w := get(t, s.Handler(), "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-42", resp["run_id"])
	assert.Equal(t, float64(12), resp["records"])
	assert.Equal(t, float64(3), resp["workers"])
	assert.Equal(t, float64(2), resp["skipped"])
	assert.Equal(t, float64(32), resp["queue_capacity"])
}

func TestStats_NoPipeline(t *testing.T) {
	w := get(t, NewServer(nil, nil).Handler(), "/api/stats")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSpans(t *testing.T) {
	tr := observability.NewTracer(observability.TracerConfig{Enabled: true, MaxSpans: 3})
	for i := 0; i < 4; i++ {
		_, span := tr.StartSpan(context.Background(), "phase", nil)
		tr.EndSpan(span, nil)
	}

	s := NewServer(nil, nil)
	s.SetTracer(tr)

	w := get(t, s.Handler(), "/api/spans?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Spans   []observability.Span `json:"spans"`
		Total   int                  `json:"total"`
		Dropped int                  `json:"dropped"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Spans, 2)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Dropped)

	w = get(t, s.Handler(), "/api/spans?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetrics_OptIn(t *testing.T) {
	s := NewServer(nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/metrics").Code)

	s.EnableMetrics()
	w := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "txp_")
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s := NewServer(fixedStats{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0", ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("Serve() returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "ok"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
