package reflection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/cortex/internal/session"
	"github.com/fyrsmithlabs/cortex/internal/tension"
)

const (
	defaultMaxInsights = 10
	defaultTopN        = 5
)

// Reporter builds tension reports from a session source.
type Reporter struct {
	source SessionSource
	now    func() time.Time
}

// ReporterOption customizes a Reporter.
type ReporterOption func(*Reporter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) { r.now = now }
}

// NewReporter creates a report generator over source.
func NewReporter(source SessionSource, opts ...ReporterOption) *Reporter {
	r := &Reporter{source: source, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate loads the archive and builds a report.
func (r *Reporter) Generate(ctx context.Context, opts ReportOptions) (*TensionReport, error) {
	sessions, err := r.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return Build(sessions, opts, r.now()), nil
}

// Build computes a report over sessions as seen at now.
func Build(sessions []session.Session, opts ReportOptions, now time.Time) *TensionReport {
	if opts.MaxInsights <= 0 {
		opts.MaxInsights = defaultMaxInsights
	}
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	if opts.Until != nil {
		sessions = tension.FilterByTime(sessions, *opts.Until)
	}

	nodes := tension.BuildNodes(sessions)
	edges := tension.BuildEdges(sessions)

	report := &TensionReport{
		ID:          uuid.New().String(),
		GeneratedAt: now,
		Until:       opts.Until,
		Statistics:  calculateStatistics(sessions, nodes, opts.TopN),
		Nodes:       tension.AnnotateNodes(nodes, now),
		Edges:       edges,
		Clusters:    tension.BuildClusters(nodes, edges, opts.Threshold),
	}

	if label, ok := tension.DetectCoreTensionPattern(sessions); ok {
		report.Pattern = &PatternFinding{CoreTension: label, Count: countOf(nodes, label)}
	}
	if d, ok := tension.DetectPatternDrift(sessions); ok {
		report.Drift = &d
	}

	report.Insights = generateInsights(report, opts.MaxInsights)
	report.Recommendations = generateRecommendations(report)
	report.Summary = generateSummary(report)
	return report
}

func countOf(nodes []tension.Node, label string) int {
	for _, n := range nodes {
		if n.Label == label {
			return n.Count
		}
	}
	return 0
}

func calculateStatistics(sessions []session.Session, nodes []tension.Node, topN int) Statistics {
	stats := Statistics{
		TotalSessions:    len(sessions),
		DistinctTensions: len(nodes),
		TopTensions:      topTensions(nodes, topN),
	}
	if len(sessions) == 0 {
		return stats
	}

	var total float64
	first, last := sessions[0].CreatedAt, sessions[0].CreatedAt
	for _, s := range sessions {
		total += s.Confidence
		if s.CreatedAt.Before(first) {
			first = s.CreatedAt
		}
		if s.CreatedAt.After(last) {
			last = s.CreatedAt
		}
	}
	stats.AverageConfidence = total / float64(len(sessions))
	stats.FirstSession = &first
	stats.LastSession = &last
	return stats
}

// topTensions orders nodes by count; ties keep first-seen order.
func topTensions(nodes []tension.Node, limit int) []TensionCount {
	counts := make([]TensionCount, 0, len(nodes))
	for _, n := range nodes {
		counts = append(counts, TensionCount{CoreTension: n.Label, Count: n.Count})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

func generateRecommendations(report *TensionReport) []string {
	recommendations := make([]string, 0)
	total := report.Statistics.TotalSessions

	if total < tension.MinDriftSessions {
		recommendations = append(recommendations,
			fmt.Sprintf("Record %d more sessions to enable drift detection", tension.MinDriftSessions-total))
	}

	if report.Drift != nil && report.Drift.Status == tension.DriftShifted {
		recommendations = append(recommendations,
			fmt.Sprintf("Revisit what changed between '%s' and '%s'", report.Drift.Earlier, report.Drift.Recent))
	}

	for _, insight := range report.Insights {
		recommendations = append(recommendations, insight.Recommendations...)
	}
	return recommendations
}

func generateSummary(report *TensionReport) string {
	stats := report.Statistics
	parts := []string{fmt.Sprintf("Analyzed %d sessions across %d tensions", stats.TotalSessions, stats.DistinctTensions)}

	if report.Pattern != nil {
		parts = append(parts, fmt.Sprintf("Recurring tension: %s", report.Pattern.CoreTension))
	}

	if d := report.Drift; d != nil {
		if d.Status == tension.DriftShifted {
			parts = append(parts, fmt.Sprintf("Focus shifted from %s to %s", d.Earlier, d.Recent))
		} else {
			parts = append(parts, fmt.Sprintf("Focus stayed on %s", d.Earlier))
		}
	}

	if len(report.Clusters) > 0 {
		parts = append(parts, fmt.Sprintf("Found %d clusters", len(report.Clusters)))
	}

	return strings.Join(parts, ". ") + "."
}
