package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cortex/internal/session"
	"github.com/fyrsmithlabs/cortex/internal/tension"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// history is ten daily sessions ending eleven days before now:
// A A B A B A B C C C
func history() []session.Session {
	labels := []string{"A", "A", "B", "A", "B", "A", "B", "C", "C", "C"}
	base := now.Add(-20 * 24 * time.Hour)
	out := make([]session.Session, 0, len(labels))
	// newest first, as stored
	for i := len(labels) - 1; i >= 0; i-- {
		out = append(out, session.Session{
			ID:          labels[i] + string(rune('0'+i)),
			CreatedAt:   base.Add(time.Duration(i) * 24 * time.Hour),
			CoreTension: labels[i],
			Confidence:  0.3,
		})
	}
	return out
}

type staticSource struct {
	sessions []session.Session
	err      error
}

func (s staticSource) Load(context.Context) ([]session.Session, error) {
	return s.sessions, s.err
}

func categories(insights []Insight) []string {
	out := make([]string, 0, len(insights))
	for _, i := range insights {
		out = append(out, i.Category)
	}
	return out
}

func TestBuild_FullHistory(t *testing.T) {
	r := Build(history(), ReportOptions{}, now)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, now, r.GeneratedAt)
	assert.Equal(t, 10, r.Statistics.TotalSessions)
	assert.Equal(t, 3, r.Statistics.DistinctTensions)
	assert.InDelta(t, 0.3, r.Statistics.AverageConfidence, 1e-9)
	require.NotNil(t, r.Statistics.FirstSession)
	assert.Equal(t, now.Add(-20*24*time.Hour), *r.Statistics.FirstSession)
	assert.Equal(t, now.Add(-11*24*time.Hour), *r.Statistics.LastSession)
	assert.Equal(t, []TensionCount{
		{CoreTension: "A", Count: 4},
		{CoreTension: "C", Count: 3},
		{CoreTension: "B", Count: 3},
	}, r.Statistics.TopTensions)

	require.NotNil(t, r.Pattern)
	assert.Equal(t, PatternFinding{CoreTension: "A", Count: 4}, *r.Pattern)

	require.NotNil(t, r.Drift)
	assert.Equal(t, tension.Drift{Status: tension.DriftShifted, Earlier: "A", Recent: "C"}, *r.Drift)

	require.Len(t, r.Edges, 3)
	assert.Equal(t, tension.Edge{ID: "A->B", Source: "A", Target: "B", Weight: 3}, r.Edges[0])
	require.Len(t, r.Clusters, 1)
	assert.Equal(t, "A::B", r.Clusters[0].ID)

	for _, n := range r.Nodes {
		assert.Equal(t, tension.ActivityDormant, n.Activity, n.Label)
	}

	assert.Equal(t, []string{
		CategoryPattern, CategoryDrift, CategoryOscillation,
		CategoryCluster, CategoryConfidence, CategoryActivity,
	}, categories(r.Insights))
	assert.InDelta(t, 0.4, r.Insights[0].Confidence, 1e-9)

	assert.Equal(t, []string{
		"Revisit what changed between 'A' and 'C'",
		"Look at what triggers the switch between 'A' and 'B'",
		"Write longer, more specific thoughts to sharpen the analysis",
	}, r.Recommendations)

	assert.Equal(t,
		"Analyzed 10 sessions across 3 tensions. Recurring tension: A. Focus shifted from A to C. Found 1 clusters.",
		r.Summary)
}

func TestBuild_TopTensionsOrder(t *testing.T) {
	r := Build(history(), ReportOptions{TopN: 2}, now)
	// B and C tie; nodes follow archive order (newest first), so C wins.
	assert.Equal(t, []TensionCount{
		{CoreTension: "A", Count: 4},
		{CoreTension: "C", Count: 3},
	}, r.Statistics.TopTensions)
}

func TestBuild_Until(t *testing.T) {
	until := now.Add(-16 * 24 * time.Hour)
	r := Build(history(), ReportOptions{Until: &until}, now)

	assert.Equal(t, 5, r.Statistics.TotalSessions)
	assert.Equal(t, &until, r.Until)
	require.NotNil(t, r.Pattern)
	assert.Equal(t, "A", r.Pattern.CoreTension)
}

func TestBuild_Empty(t *testing.T) {
	r := Build(nil, ReportOptions{}, now)

	assert.Zero(t, r.Statistics.TotalSessions)
	assert.Nil(t, r.Statistics.FirstSession)
	assert.Nil(t, r.Pattern)
	assert.Nil(t, r.Drift)
	assert.NotNil(t, r.Nodes)
	assert.NotNil(t, r.Edges)
	assert.NotNil(t, r.Clusters)
	assert.Empty(t, r.Insights)
	assert.Equal(t, []string{"Record 5 more sessions to enable drift detection"}, r.Recommendations)
	assert.Equal(t, "Analyzed 0 sessions across 0 tensions.", r.Summary)
}

func TestBuild_MaxInsights(t *testing.T) {
	r := Build(history(), ReportOptions{MaxInsights: 2}, now)
	assert.Len(t, r.Insights, 2)
}

func TestBuild_StableFocus(t *testing.T) {
	base := now.Add(-time.Hour)
	sessions := make([]session.Session, 0, 5)
	for i, l := range []string{"X", "X", "Y", "X", "X"} {
		sessions = append(sessions, session.Session{
			ID: l, CreatedAt: base.Add(time.Duration(i) * time.Minute), CoreTension: l, Confidence: 0.9,
		})
	}

	r := Build(sessions, ReportOptions{}, now)
	require.NotNil(t, r.Drift)
	assert.Equal(t, tension.DriftConsistent, r.Drift.Status)
	assert.Contains(t, r.Summary, "Focus stayed on X")
	assert.NotContains(t, categories(r.Insights), CategoryConfidence)
	assert.NotContains(t, categories(r.Insights), CategoryActivity)
}

func TestReporter_Generate(t *testing.T) {
	r := NewReporter(staticSource{sessions: history()}, WithClock(func() time.Time { return now }))
	report, err := r.Generate(context.Background(), ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 10, report.Statistics.TotalSessions)
	assert.Equal(t, now, report.GeneratedAt)

	boom := errors.New("disk on fire")
	_, err = NewReporter(staticSource{err: boom}).Generate(context.Background(), ReportOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestOscillations(t *testing.T) {
	edges := []tension.Edge{
		{ID: "A->B", Source: "A", Target: "B"},
		{ID: "B->C", Source: "B", Target: "C"},
		{ID: "B->A", Source: "B", Target: "A"},
	}
	assert.Equal(t, [][2]string{{"A", "B"}}, oscillations(edges))
	assert.Empty(t, oscillations(nil))
}

func TestFormatReport(t *testing.T) {
	r := Build(history(), ReportOptions{}, now)

	t.Run("json", func(t *testing.T) {
		out, err := FormatReport(r, FormatJSON)
		require.NoError(t, err)
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Contains(t, decoded, "statistics")
		assert.Contains(t, decoded, "clusters")

		def, err := FormatReport(r, "")
		require.NoError(t, err)
		assert.Equal(t, out, def)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := FormatReport(r, FormatYAML)
		require.NoError(t, err)
		assert.Contains(t, string(out), "total_sessions: 10")
		assert.Contains(t, string(out), "core_tension: A")
		assert.Contains(t, string(out), "activity: dormant")
	})

	t.Run("markdown", func(t *testing.T) {
		out, err := FormatReport(r, FormatMarkdown)
		require.NoError(t, err)
		s := string(out)
		assert.True(t, strings.HasPrefix(s, "# Tension Report"))
		assert.Contains(t, s, "| A | 4 |")
		assert.Contains(t, s, "### Oscillation")
	})

	t.Run("text", func(t *testing.T) {
		out, err := FormatReport(r, FormatText)
		require.NoError(t, err)
		assert.Contains(t, string(out), "TENSION REPORT")
		assert.Contains(t, string(out), "Sessions: 10")
	})

	t.Run("dot", func(t *testing.T) {
		out, err := FormatReport(r, FormatDOT)
		require.NoError(t, err)
		s := string(out)
		assert.True(t, strings.HasPrefix(s, "digraph tensions {"))
		assert.Contains(t, s, "subgraph cluster_0")
		assert.Contains(t, s, `"A" -> "B" [label="3", penwidth=3];`)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := FormatReport(r, "pdf")
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})
}

func TestDotQuote(t *testing.T) {
	assert.Equal(t, `"say \"no\""`, dotQuote(`say "no"`))
	assert.Equal(t, `"a\\b"`, dotQuote(`a\b`))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType(FormatJSON))
	assert.Equal(t, "application/yaml", ContentType(FormatYAML))
	assert.Equal(t, "text/vnd.graphviz", ContentType(FormatDOT))
}
