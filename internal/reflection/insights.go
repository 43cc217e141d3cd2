package reflection

import (
	"fmt"

	"github.com/fyrsmithlabs/cortex/internal/tension"
)

const lowConfidence = 0.4

func generateInsights(report *TensionReport, maxInsights int) []Insight {
	insights := make([]Insight, 0)
	total := report.Statistics.TotalSessions

	if p := report.Pattern; p != nil && total > 0 {
		insights = append(insights, Insight{
			Title:       "Recurring Core Tension",
			Description: fmt.Sprintf("'%s' appears in %d of %d sessions", p.CoreTension, p.Count, total),
			Category:    CategoryPattern,
			Confidence:  float64(p.Count) / float64(total),
		})
	}

	if d := report.Drift; d != nil {
		if d.Status == tension.DriftShifted {
			insights = append(insights, Insight{
				Title:       "Tension Shift",
				Description: fmt.Sprintf("Earlier sessions centered on '%s'; recent ones on '%s'", d.Earlier, d.Recent),
				Category:    CategoryDrift,
				Confidence:  0.7,
			})
		} else {
			insights = append(insights, Insight{
				Title:       "Stable Focus",
				Description: fmt.Sprintf("'%s' dominates both the earliest and the most recent sessions", d.Earlier),
				Category:    CategoryDrift,
				Confidence:  0.7,
			})
		}
	}

	for _, pair := range oscillations(report.Edges) {
		insights = append(insights, Insight{
			Title:       "Oscillation",
			Description: fmt.Sprintf("Thinking moves back and forth between '%s' and '%s'", pair[0], pair[1]),
			Category:    CategoryOscillation,
			Confidence:  0.75,
			Recommendations: []string{
				fmt.Sprintf("Look at what triggers the switch between '%s' and '%s'", pair[0], pair[1]),
			},
		})
	}

	if c, ok := strongestCluster(report.Clusters); ok {
		insights = append(insights, Insight{
			Title:       "Tension Cluster",
			Description: fmt.Sprintf("'%s' and '%s' follow each other %d times", c.Nodes[0], c.Nodes[1], c.Strength),
			Category:    CategoryCluster,
			Confidence:  0.6,
		})
	}

	if total > 0 && report.Statistics.AverageConfidence < lowConfidence {
		insights = append(insights, Insight{
			Title:       "Low Analysis Confidence",
			Description: fmt.Sprintf("Average confidence is %.0f%%", report.Statistics.AverageConfidence*100),
			Category:    CategoryConfidence,
			Confidence:  0.8,
			Recommendations: []string{
				"Write longer, more specific thoughts to sharpen the analysis",
			},
		})
	}

	if dormant := countActivity(report.Nodes, tension.ActivityDormant); dormant > 0 {
		insights = append(insights, Insight{
			Title:       "Dormant Tensions",
			Description: fmt.Sprintf("%d of %d tensions have not come up in the last %d days", dormant, len(report.Nodes), int(tension.FadingWithin.Hours()/24)),
			Category:    CategoryActivity,
			Confidence:  0.9,
		})
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

// oscillations returns tension pairs with edges in both directions, in
// order of the first edge of each pair.
func oscillations(edges []tension.Edge) [][2]string {
	ids := make(map[string]bool, len(edges))
	for _, e := range edges {
		ids[e.ID] = true
	}

	pairs := make([][2]string, 0)
	seen := make(map[string]bool)
	for _, e := range edges {
		if !ids[tension.EdgeID(e.Target, e.Source)] {
			continue
		}
		key := tension.ClusterID(e.Source, e.Target)
		if seen[key] {
			continue
		}
		seen[key] = true
		pairs = append(pairs, [2]string{e.Source, e.Target})
	}
	return pairs
}

func strongestCluster(clusters []tension.Cluster) (tension.Cluster, bool) {
	var best tension.Cluster
	found := false
	for _, c := range clusters {
		if len(c.Nodes) < 2 {
			continue
		}
		if !found || c.Strength > best.Strength {
			best, found = c, true
		}
	}
	return best, found
}

func countActivity(nodes []tension.NodeActivity, a tension.Activity) int {
	n := 0
	for _, node := range nodes {
		if node.Activity == a {
			n++
		}
	}
	return n
}
