package tension

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fyrsmithlabs/cortex/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var base = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

// history builds sessions one hour apart, oldest first.
func history(labels ...string) []session.Session {
	out := make([]session.Session, 0, len(labels))
	for i, l := range labels {
		out = append(out, session.Session{
			ID:          fmt.Sprintf("s%d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			CoreTension: l,
			Confidence:  0.5,
		})
	}
	return out
}

func reversed(in []session.Session) []session.Session {
	out := make([]session.Session, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}

func TestDetectCoreTensionPattern(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   string
		wantOK bool
	}{
		{name: "empty", labels: nil},
		{name: "below minimum length", labels: []string{"A", "A"}},
		{name: "recurring label", labels: []string{"A", "A", "B", "A", "A"}, want: "A", wantOK: true},
		{name: "all distinct", labels: []string{"A", "B", "C"}},
		{name: "empty labels ignored", labels: []string{"", "", "", "A"}},
		{name: "empty labels do not count toward pattern", labels: []string{"", "", "A", "A"}, want: "A", wantOK: true},
		{name: "first seen wins ties", labels: []string{"B", "A", "A", "B"}, want: "B", wantOK: true},
		{name: "case sensitive", labels: []string{"Fear", "fear", "FEAR"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectCoreTensionPattern(history(tt.labels...))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectCoreTensionPattern_Idempotent(t *testing.T) {
	sessions := history("A", "B", "A", "C", "B", "A")
	first, ok1 := DetectCoreTensionPattern(sessions)
	second, ok2 := DetectCoreTensionPattern(sessions)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

// driftResult folds the two return values of DetectPatternDrift so they can
// be diffed as one.
type driftResult struct {
	Drift Drift
	OK    bool
}

func TestBuilders_Idempotent(t *testing.T) {
	sessions := history("A", "B", "A", "C", "B", "A", "", "B", "A", "C")
	snapshot := append([]session.Session(nil), sessions...)

	tests := []struct {
		name string
		run  func() any
	}{
		{"DetectPatternDrift", func() any {
			d, ok := DetectPatternDrift(sessions)
			return driftResult{Drift: d, OK: ok}
		}},
		{"BuildNodes", func() any { return BuildNodes(sessions) }},
		{"BuildEdges", func() any { return BuildEdges(sessions) }},
		{"BuildClusters", func() any {
			return BuildClusters(BuildNodes(sessions), BuildEdges(sessions), 1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := tt.run()
			second := tt.run()
			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("%s() not idempotent (-first +second):\n%s", tt.name, diff)
			}
			if diff := cmp.Diff(snapshot, sessions); diff != "" {
				t.Errorf("%s() mutated its input (-before +after):\n%s", tt.name, diff)
			}
		})
	}
}

func TestDetectPatternDrift(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   Drift
		wantOK bool
	}{
		{name: "below minimum length", labels: []string{"A", "A", "A", "A"}},
		{
			name:   "shifted over ten sessions",
			labels: []string{"A", "A", "A", "B", "C", "D", "E", "B", "B", "B"},
			want:   Drift{Status: DriftShifted, Earlier: "A", Recent: "B"},
			wantOK: true,
		},
		{
			name:   "consistent",
			labels: []string{"A", "A", "B", "C", "A", "A"},
			want:   Drift{Status: DriftConsistent, Earlier: "A"},
			wantOK: true,
		},
		{
			name:   "five sessions use windows of two",
			labels: []string{"A", "A", "X", "B", "B"},
			want:   Drift{Status: DriftShifted, Earlier: "A", Recent: "B"},
			wantOK: true,
		},
		{name: "early window without mode", labels: []string{"A", "B", "C", "D", "E", "F", "F", "F", "F", "F"}},
		{name: "recent window without mode", labels: []string{"A", "A", "A", "A", "B", "C", "D", "E", "F", "G"}},
		{name: "empty label as mode means no mode", labels: []string{"", "", "", "", "C", "D", "B", "B", "B", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectPatternDrift(history(tt.labels...))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectPatternDrift_SortsByTime(t *testing.T) {
	sessions := history("A", "A", "A", "B", "C", "D", "E", "B", "B", "B")

	got, ok := DetectPatternDrift(reversed(sessions))
	require.True(t, ok)
	assert.Equal(t, Drift{Status: DriftShifted, Earlier: "A", Recent: "B"}, got)

	assert.Equal(t, "s9", reversed(sessions)[0].ID, "input order preserved")
}

func TestBuildNodes(t *testing.T) {
	sessions := history("A", "A", "B", "A", "A")

	want := []Node{
		{ID: "A", Label: "A", Count: 4, LastSeen: base.Add(4 * time.Hour)},
		{ID: "B", Label: "B", Count: 1, LastSeen: base.Add(2 * time.Hour)},
	}
	if diff := cmp.Diff(want, BuildNodes(sessions)); diff != "" {
		t.Errorf("BuildNodes() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildNodes_LastSeenIsMaxRegardlessOfOrder(t *testing.T) {
	nodes := BuildNodes(reversed(history("A", "B", "A")))
	require.Len(t, nodes, 2)
	assert.Equal(t, "A", nodes[0].ID)
	assert.Equal(t, base.Add(2*time.Hour), nodes[0].LastSeen)
}

func TestBuildNodes_SkipsEmpty(t *testing.T) {
	assert.Empty(t, BuildNodes(history("", "")))
	assert.NotNil(t, BuildNodes(nil))
}

func TestBuildEdges(t *testing.T) {
	t.Run("alternating pair", func(t *testing.T) {
		want := []Edge{
			{ID: "X->Y", Source: "X", Target: "Y", Weight: 2},
			{ID: "Y->X", Source: "Y", Target: "X", Weight: 1},
		}
		if diff := cmp.Diff(want, BuildEdges(history("X", "Y", "X", "Y"))); diff != "" {
			t.Errorf("BuildEdges() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no self edges", func(t *testing.T) {
		edges := BuildEdges(history("A", "A", "B", "B"))
		assert.Equal(t, []Edge{{ID: "A->B", Source: "A", Target: "B", Weight: 1}}, edges)
	})

	t.Run("empty label breaks chain", func(t *testing.T) {
		assert.Empty(t, BuildEdges(history("A", "", "B")))
	})

	t.Run("fewer than two sessions", func(t *testing.T) {
		assert.Empty(t, BuildEdges(history("A")))
		assert.NotNil(t, BuildEdges(nil))
	})

	t.Run("input order irrelevant", func(t *testing.T) {
		sessions := history("X", "Y", "X", "Y")
		assert.Equal(t, BuildEdges(sessions), BuildEdges(reversed(sessions)))
	})
}

func TestBuildClusters(t *testing.T) {
	sessions := history("X", "Y", "X", "Y")
	nodes := BuildNodes(sessions)
	edges := BuildEdges(sessions)

	clusters := BuildClusters(nodes, edges, 2)
	assert.Equal(t, []Cluster{{ID: "X::Y", Nodes: []string{"X", "Y"}, Strength: 2}}, clusters)

	assert.Equal(t, []Cluster{{ID: "X::Y", Nodes: []string{"X", "Y"}, Strength: 2}}, BuildClusters(nodes, edges, 0),
		"zero threshold falls back to default")
	assert.Empty(t, BuildClusters(nodes, edges, 3))
}

func TestBuildClusters_FirstQualifyingEdgeWins(t *testing.T) {
	edges := []Edge{
		{ID: "B->A", Source: "B", Target: "A", Weight: 2},
		{ID: "A->B", Source: "A", Target: "B", Weight: 5},
	}

	clusters := BuildClusters(nil, edges, 2)
	require.Len(t, clusters, 1)
	assert.Equal(t, "A::B", clusters[0].ID)
	assert.Equal(t, []string{"B", "A"}, clusters[0].Nodes)
	assert.Equal(t, 2, clusters[0].Strength)
}

func TestBuildClusters_ThresholdProperty(t *testing.T) {
	sessions := history("A", "B", "A", "B", "C", "A", "B", "C", "D", "C", "D")
	edges := BuildEdges(sessions)

	for threshold := 1; threshold <= 4; threshold++ {
		for _, c := range BuildClusters(nil, edges, threshold) {
			assert.GreaterOrEqual(t, c.Strength, threshold)
			assert.NotEqual(t, c.Nodes[0], c.Nodes[1])
		}
	}
}

func TestBuildClusters_UnknownEndpoints(t *testing.T) {
	nodes := []Node{{ID: "A", Label: "A"}}
	edges := []Edge{{ID: "A->B", Source: "A", Target: "B", Weight: 3}}

	assert.Empty(t, BuildClusters(nodes, edges, 2))
	assert.Len(t, BuildClusters(nil, edges, 2), 1)
}

func TestFilterByTime(t *testing.T) {
	sessions := reversed(history("A", "B", "C", "D"))

	filtered := FilterByTime(sessions, base.Add(time.Hour))
	assert.Equal(t, []string{"s1", "s0"}, session.IDs(filtered), "inclusive and order preserving")

	assert.Empty(t, FilterByTime(sessions, base.Add(-time.Second)))
	assert.Len(t, FilterByTime(sessions, base.Add(24*time.Hour)), 4)
}

func TestFilterByTime_Subset(t *testing.T) {
	sessions := history("A", "B", "A", "C", "B")
	until := base.Add(2 * time.Hour)

	filtered := FilterByTime(sessions, until)
	nodes := BuildNodes(filtered)
	for _, n := range nodes {
		assert.False(t, n.LastSeen.After(until))
	}
	assert.Len(t, nodes, 2)
}

func TestEmptyInput(t *testing.T) {
	_, ok := DetectCoreTensionPattern(nil)
	assert.False(t, ok)

	_, ok = DetectPatternDrift(nil)
	assert.False(t, ok)

	assert.Empty(t, BuildNodes(nil))
	assert.Empty(t, BuildEdges(nil))
	assert.Empty(t, BuildClusters(nil, nil, DefaultClusterThreshold))
	assert.Empty(t, FilterByTime(nil, base))
}

func TestClassifyActivity(t *testing.T) {
	now := base.Add(30 * 24 * time.Hour)

	tests := []struct {
		age  time.Duration
		want Activity
		new  bool
	}{
		{age: 10 * time.Second, want: ActivityActive, new: true},
		{age: 2 * time.Hour, want: ActivityActive},
		{age: 3 * 24 * time.Hour, want: ActivityFading},
		{age: 9 * 24 * time.Hour, want: ActivityFading},
		{age: 10 * 24 * time.Hour, want: ActivityDormant},
	}

	for _, tt := range tests {
		t.Run(tt.age.String(), func(t *testing.T) {
			lastSeen := now.Add(-tt.age)
			assert.Equal(t, tt.want, ClassifyActivity(lastSeen, now))
			assert.Equal(t, tt.new, IsNew(lastSeen, now))
		})
	}
}

func TestAnnotateNodes(t *testing.T) {
	now := base.Add(5 * 24 * time.Hour)
	nodes := []Node{
		{ID: "A", Label: "A", Count: 1, LastSeen: now.Add(-time.Hour)},
		{ID: "B", Label: "B", Count: 2, LastSeen: base},
	}

	annotated := AnnotateNodes(nodes, now)
	require.Len(t, annotated, 2)
	assert.Equal(t, ActivityActive, annotated[0].Activity)
	assert.Equal(t, ActivityFading, annotated[1].Activity)
	assert.Equal(t, 2, annotated[1].Count)
}

func TestBuildTimeline(t *testing.T) {
	sessions := reversed(history("A", "B", "C"))
	now := base.Add(4 * time.Hour)

	tl := BuildTimeline(sessions, now)
	assert.Equal(t, base, tl.Origin)
	assert.Equal(t, base.Add(2*time.Hour), tl.Latest)
	require.Len(t, tl.Marks, 3)
	assert.Equal(t, "s0", tl.Marks[0].SessionID)
	assert.InDelta(t, 0.0, tl.Marks[0].Position, 1e-9)
	assert.InDelta(t, 0.25, tl.Marks[1].Position, 1e-9)
	assert.InDelta(t, 0.5, tl.Marks[2].Position, 1e-9)
}

func TestBuildTimeline_Empty(t *testing.T) {
	tl := BuildTimeline(nil, base)
	assert.Equal(t, base, tl.Origin)
	assert.Empty(t, tl.Marks)
}
