package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
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

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(context.Context, string) (*analysis.Payload, error) {
	return &analysis.Payload{
		Reflection: analysis.Reflection{
			Summary:     analysis.Some("You keep weighing comfort against growth."),
			CoreTension: analysis.Some("Comfort vs Growth"),
		},
		Confidence: analysis.Confidence{AnalysisConfidence: analysis.SomeFloat(0.9)},
		Analysis: analysis.Findings{Conflicts: []analysis.Conflict{
			{Description: "Wants change, fears loss"},
		}},
	}, nil
}

func (stubAnalyzer) RedeemInvite(context.Context, string) error { return nil }

var testNow = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc, err := journal.NewService(journal.Options{
		Backend:  storage.NewMemoryBackend(),
		Analyzer: stubAnalyzer{},
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)

	reg := services.NewRegistry(services.Options{
		Journal:   svc,
		Telemetry: telemetry.NewTestTelemetry().Telemetry,
	})
	s, err := NewServer(&Config{Name: "cortex-test", Version: "test", Logger: zap.NewNop()}, reg)
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s *Server, labels ...string) {
	t.Helper()
	sessions := make([]session.Session, 0, len(labels))
	for i, l := range labels {
		sessions = append(sessions, session.Session{
			ID:          "seed-" + string(rune('a'+i)),
			CreatedAt:   testNow.Add(time.Duration(i-len(labels)) * time.Hour),
			CoreTension: l,
			Confidence:  0.5,
			Reflection:  "r",
		})
	}
	_, err := s.journal.Import(context.Background(), sessions)
	require.NoError(t, err)
}

func TestNewServer_RequiresJournal(t *testing.T) {
	_, err := NewServer(nil, services.NewRegistry(services.Options{}))
	assert.Error(t, err)

	_, err = NewServer(nil, nil)
	assert.Error(t, err)
}

func TestHandleSubmit(t *testing.T) {
	s := newTestServer(t)

	res, out, err := s.handleSubmit(context.Background(), nil, submitInput{Text: "Should I take the job abroad?"})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, testNow, out.CreatedAt)
	assert.Equal(t, "Comfort vs Growth", out.CoreTension)
	assert.InDelta(t, 0.9, out.Confidence, 1e-9)
	assert.Equal(t, []string{"Wants change, fears loss"}, out.Conflicts)

	_, _, err = s.handleSubmit(context.Background(), nil, submitInput{Text: "  "})
	assert.ErrorIs(t, err, journal.ErrEmptyThought)
}

func TestHandleSessions(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleSessions(context.Background(), nil, sessionsInput{})
	require.NoError(t, err)
	assert.NotNil(t, out.Sessions)
	assert.Zero(t, out.Total)

	seed(t, s, "A", "B", "C")

	_, out, err = s.handleSessions(context.Background(), nil, sessionsInput{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
	require.Len(t, out.Sessions, 2)
	assert.Equal(t, "C", out.Sessions[0].CoreTension)

	_, out, err = s.handleSessions(context.Background(), nil, sessionsInput{Chronological: true})
	require.NoError(t, err)
	assert.Equal(t, "A", out.Sessions[0].CoreTension)

	_, _, err = s.handleSessions(context.Background(), nil, sessionsInput{Limit: -1})
	assert.ErrorIs(t, err, errInvalidArgument)
}

func TestHandlePatternAndDrift(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, pattern, err := s.handlePattern(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.False(t, pattern.Found)

	_, drift, err := s.handleDrift(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.False(t, drift.Found)

	seed(t, s, "A", "A", "A", "B", "B")

	_, pattern, err = s.handlePattern(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.Equal(t, patternOutput{Found: true, CoreTension: "A"}, pattern)

	res, drift, err := s.handleDrift(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.Equal(t, driftOutput{Found: true, Status: "shifted", Earlier: "A", Recent: "B"}, drift)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "Shifted from A to B", res.Content[0].(*mcp.TextContent).Text)
}

func TestHandleTensionMap(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	seed(t, s, "A", "B", "A", "B")

	_, out, err := s.handleTensionMap(ctx, nil, mapInput{})
	require.NoError(t, err)
	assert.Len(t, out.Nodes, 2)
	assert.Len(t, out.Edges, 2)
	assert.Len(t, out.Clusters, 1)
	assert.Empty(t, out.DOT)

	_, out, err = s.handleTensionMap(ctx, nil, mapInput{Format: "dot", Threshold: 3})
	require.NoError(t, err)
	assert.Empty(t, out.Clusters)
	assert.True(t, strings.HasPrefix(out.DOT, "digraph"))

	until := testNow.Add(-3 * time.Hour).Format(time.RFC3339)
	_, out, err = s.handleTensionMap(ctx, nil, mapInput{Until: until})
	require.NoError(t, err)
	assert.Len(t, out.Edges, 1)

	for _, in := range []mapInput{{Until: "soon"}, {Threshold: -1}, {Format: "svg"}} {
		_, _, err = s.handleTensionMap(ctx, nil, in)
		assert.ErrorIs(t, err, errInvalidArgument)
	}
}

func TestHandleReport(t *testing.T) {
	s := newTestServer(t)
	seed(t, s, "A", "A", "B")

	_, out, err := s.handleReport(context.Background(), nil, reportInput{})
	require.NoError(t, err)
	assert.Equal(t, "markdown", out.Format)
	assert.Equal(t, 3, out.TotalSessions)
	assert.Equal(t, testNow, out.GeneratedAt)
	assert.NotEmpty(t, out.FormattedText)
	assert.NotNil(t, out.Recommendations)

	_, _, err = s.handleReport(context.Background(), nil, reportInput{Format: "pdf"})
	assert.Error(t, err)
}

func TestServer_InMemorySession(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"cortex_submit", "cortex_sessions", "cortex_pattern",
		"cortex_drift", "cortex_tension_map", "cortex_report",
	}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "cortex_submit",
		Arguments: map[string]any{"text": "Stay or leave?"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	assert.Equal(t, "Core tension: Comfort vs Growth", res.Content[0].(*mcp.TextContent).Text)
}
