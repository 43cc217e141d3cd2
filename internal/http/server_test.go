package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/analysis"
	"github.com/fyrsmithlabs/cortex/internal/journal"
	"github.com/fyrsmithlabs/cortex/internal/services"
	"github.com/fyrsmithlabs/cortex/internal/session"
	"github.com/fyrsmithlabs/cortex/internal/storage"
	"github.com/fyrsmithlabs/cortex/internal/telemetry"
)

type stubAnalyzer struct {
	coreTension string
	err         error
	inviteErr   error
}

func (a *stubAnalyzer) Analyze(context.Context, string) (*analysis.Payload, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &analysis.Payload{
		Reflection: analysis.Reflection{
			Summary:     analysis.Some("A summary."),
			CoreTension: analysis.Some(a.coreTension),
		},
		Confidence: analysis.Confidence{AnalysisConfidence: analysis.SomeFloat(0.7)},
	}, nil
}

func (a *stubAnalyzer) RedeemInvite(context.Context, string) error { return a.inviteErr }

var testNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func setupTestServer(t *testing.T) (*Server, *stubAnalyzer) {
	t.Helper()
	analyzer := &stubAnalyzer{coreTension: "Freedom vs Security"}
	svc, err := journal.NewService(journal.Options{
		Backend:  storage.NewMemoryBackend(),
		Analyzer: analyzer,
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)

	reg := services.NewRegistry(services.Options{
		Journal:   svc,
		Telemetry: telemetry.NewTestTelemetry().Telemetry,
		Version:   "test",
	})
	server, err := NewServer(reg, zap.NewNop(), nil)
	require.NoError(t, err)
	return server, analyzer
}

func do(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func seedSessions(t *testing.T, s *Server, labels ...string) {
	t.Helper()
	sessions := make([]session.Session, 0, len(labels))
	for i, l := range labels {
		sessions = append(sessions, session.Session{
			ID:          "seed-" + string(rune('a'+i)),
			CreatedAt:   testNow.Add(time.Duration(i-len(labels)) * time.Hour),
			CoreTension: l,
			Confidence:  0.6,
			Reflection:  "r",
		})
	}
	rec := do(t, s, http.MethodPost, "/api/v1/sessions/import", sessions)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, _ := setupTestServer(t)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9191, server.config.Port)
		assert.Equal(t, "2M", server.config.BodyLimit)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		server, _ := setupTestServer(t)
		_, err := NewServer(server.registry, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error without journal", func(t *testing.T) {
		_, err := NewServer(services.NewRegistry(services.Options{}), zap.NewNop(), nil)
		require.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleStatus(t *testing.T) {
	server, _ := setupTestServer(t)
	seedSessions(t, server, "A", "A", "B")

	rec := do(t, server, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 3, resp.Sessions)
	assert.Equal(t, 2, resp.Tensions)
	assert.Equal(t, "A", resp.Pattern)
	require.NotNil(t, resp.Telemetry)
	assert.True(t, resp.Telemetry.Healthy)
}

func TestHandleSubmit(t *testing.T) {
	t.Run("stores the analyzed session", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/thoughts", map[string]string{"text": "Should I move abroad?"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp journal.SubmitResult
		decode(t, rec, &resp)
		assert.Equal(t, "Freedom vs Security", resp.Session.CoreTension)
		assert.Equal(t, "A summary.", resp.Summary)
		assert.InDelta(t, 0.7, resp.Session.Confidence, 1e-9)
		assert.Equal(t, testNow, resp.Session.CreatedAt)
	})

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing text", body: map[string]string{}},
		{name: "blank text", body: map[string]string{"text": "   "}},
		{name: "too long", body: map[string]string{"text": strings.Repeat("x", 10001)}},
		{name: "malformed json", body: "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t)
			rec := do(t, server, http.MethodPost, "/api/v1/thoughts", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleSubmit_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "breaker open", err: analysis.ErrUnavailable, want: http.StatusServiceUnavailable},
		{name: "api error", err: &analysis.APIError{StatusCode: 500, Message: "boom"}, want: http.StatusBadGateway},
		{name: "other", err: assert.AnError, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, analyzer := setupTestServer(t)
			analyzer.err = tt.err

			rec := do(t, server, http.MethodPost, "/api/v1/thoughts", map[string]string{"text": "hello"})
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleSessions(t *testing.T) {
	server, _ := setupTestServer(t)
	seedSessions(t, server, "A", "B", "C")

	rec := do(t, server, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recent SessionsResponse
	decode(t, rec, &recent)
	assert.Equal(t, "recent", recent.Order)
	require.Equal(t, 3, recent.Count)
	assert.Equal(t, "C", recent.Sessions[0].CoreTension)

	rec = do(t, server, http.MethodGet, "/api/v1/sessions?order=chronological", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var chrono SessionsResponse
	decode(t, rec, &chrono)
	assert.Equal(t, "A", chrono.Sessions[0].CoreTension)

	rec = do(t, server, http.MethodGet, "/api/v1/sessions?order=random", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleImport_RejectsNonArray(t *testing.T) {
	server, _ := setupTestServer(t)
	rec := do(t, server, http.MethodPost, "/api/v1/sessions/import", `{"id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClear(t *testing.T) {
	server, _ := setupTestServer(t)
	seedSessions(t, server, "A")

	rec := do(t, server, http.MethodDelete, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, server, http.MethodGet, "/api/v1/sessions", nil)
	var resp SessionsResponse
	decode(t, rec, &resp)
	assert.Zero(t, resp.Count)
}

func TestHandlePatterns(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/api/v1/patterns/core-tension", nil)
	var pattern PatternResponse
	decode(t, rec, &pattern)
	assert.False(t, pattern.Found)

	seedSessions(t, server, "A", "A", "A", "B", "B")

	rec = do(t, server, http.MethodGet, "/api/v1/patterns/core-tension", nil)
	decode(t, rec, &pattern)
	assert.True(t, pattern.Found)
	assert.Equal(t, "A", pattern.CoreTension)

	rec = do(t, server, http.MethodGet, "/api/v1/patterns/drift", nil)
	var drift DriftResponse
	decode(t, rec, &drift)
	require.True(t, drift.Found)
	assert.Equal(t, "A", drift.Drift.Earlier)
	assert.Equal(t, "B", drift.Drift.Recent)
}

func TestHandleTensionMap(t *testing.T) {
	server, _ := setupTestServer(t)
	seedSessions(t, server, "A", "B", "A", "B")

	rec := do(t, server, http.MethodGet, "/api/v1/tensions/map", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m journal.TensionMap
	decode(t, rec, &m)
	assert.Len(t, m.Nodes, 2)
	assert.Len(t, m.Edges, 2)
	assert.Len(t, m.Clusters, 1)

	rec = do(t, server, http.MethodGet, "/api/v1/tensions/clusters?threshold=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	until := url.QueryEscape(testNow.Add(-3 * time.Hour).Format(time.RFC3339))
	rec = do(t, server, http.MethodGet, "/api/v1/tensions/nodes?until="+until, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var nodes []map[string]interface{}
	decode(t, rec, &nodes)
	assert.Len(t, nodes, 2)

	rec = do(t, server, http.MethodGet, "/api/v1/tensions/edges?until="+until, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var edges []map[string]interface{}
	decode(t, rec, &edges)
	assert.Len(t, edges, 1)

	rec = do(t, server, http.MethodGet, "/api/v1/tensions/map?format=dot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "digraph")
}

func TestHandleTensionMap_BadQuery(t *testing.T) {
	server, _ := setupTestServer(t)
	for _, q := range []string{"until=yesterday", "threshold=0", "threshold=two"} {
		rec := do(t, server, http.MethodGet, "/api/v1/tensions/map?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHandleTimeline(t *testing.T) {
	server, _ := setupTestServer(t)
	seedSessions(t, server, "A", "B")

	rec := do(t, server, http.MethodGet, "/api/v1/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tl struct {
		Marks []map[string]interface{} `json:"marks"`
	}
	decode(t, rec, &tl)
	assert.Len(t, tl.Marks, 2)
}

func TestHandleReport(t *testing.T) {
	server, _ := setupTestServer(t)
	seedSessions(t, server, "A", "A", "B")

	rec := do(t, server, http.MethodGet, "/api/v1/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get(echo.HeaderContentType))
	var report map[string]interface{}
	decode(t, rec, &report)
	assert.Contains(t, report, "statistics")

	rec = do(t, server, http.MethodGet, "/api/v1/report?format=markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/markdown")

	rec = do(t, server, http.MethodGet, "/api/v1/report?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleNotes(t *testing.T) {
	server, _ := setupTestServer(t)
	id := url.PathEscape("Freedom vs Security")

	rec := do(t, server, http.MethodPut, "/api/v1/nodes/"+id+"/note", NoteRequest{Note: "after the offer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, server, http.MethodGet, "/api/v1/nodes/"+id+"/note", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp NoteResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Freedom vs Security", resp.NodeID)
	assert.Equal(t, "after the offer", resp.Note)

	rec = do(t, server, http.MethodPut, "/api/v1/nodes/"+id+"/note", NoteRequest{Note: strings.Repeat("n", 4097)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleInvite(t *testing.T) {
	server, analyzer := setupTestServer(t)

	analyzer.inviteErr = analysis.ErrInviteDenied
	rec := do(t, server, http.MethodPost, "/api/v1/invite/BAD", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	analyzer.inviteErr = nil
	rec = do(t, server, http.MethodPost, "/api/v1/invite/WELCOME", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp InviteResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Access)

	rec = do(t, server, http.MethodGet, "/api/v1/status", nil)
	var status StatusResponse
	decode(t, rec, &status)
	assert.True(t, status.Access)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	do(t, server, http.MethodPost, "/api/v1/thoughts", map[string]string{"text": "hello"})

	rec := do(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cortex_journal_thoughts_total")
}
