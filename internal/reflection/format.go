package reflection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/cortex/internal/tension"
)

// Output formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatDOT      = "dot"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatMarkdown, FormatText, FormatDOT}
}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch format {
	case FormatYAML:
		return "application/yaml"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "application/json"
	}
}

// FormatReport renders report. An empty format means JSON.
func FormatReport(report *TensionReport, format string) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		return json.MarshalIndent(report, "", "  ")
	case FormatYAML:
		return yaml.Marshal(report)
	case FormatMarkdown:
		return []byte(formatAsMarkdown(report)), nil
	case FormatText:
		return []byte(formatAsText(report)), nil
	case FormatDOT:
		return []byte(FormatDOTGraph(report.Nodes, report.Edges, report.Clusters)), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
}

func formatAsMarkdown(report *TensionReport) string {
	var sb strings.Builder
	stats := report.Statistics

	sb.WriteString("# Tension Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", report.GeneratedAt.Format(time.RFC3339)))
	if report.Until != nil {
		sb.WriteString(fmt.Sprintf("**Until:** %s\n", report.Until.Format(time.RFC3339)))
	}
	sb.WriteString("\n## Summary\n\n")
	sb.WriteString(report.Summary + "\n\n")

	sb.WriteString("## Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- Sessions: %d\n", stats.TotalSessions))
	sb.WriteString(fmt.Sprintf("- Distinct tensions: %d\n", stats.DistinctTensions))
	sb.WriteString(fmt.Sprintf("- Average confidence: %.2f\n\n", stats.AverageConfidence))

	if len(stats.TopTensions) > 0 {
		sb.WriteString("## Top Tensions\n\n")
		sb.WriteString("| Tension | Sessions |\n|---|---|\n")
		for _, t := range stats.TopTensions {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", escapeTable(t.CoreTension), t.Count))
		}
		sb.WriteString("\n")
	}

	if len(report.Nodes) > 0 {
		sb.WriteString("## Tension Map\n\n")
		for _, n := range report.Nodes {
			sb.WriteString(fmt.Sprintf("- **%s** (%d, %s)\n", n.Label, n.Count, n.Activity))
		}
		for _, e := range report.Edges {
			sb.WriteString(fmt.Sprintf("- %s → %s ×%d\n", e.Source, e.Target, e.Weight))
		}
		sb.WriteString("\n")
	}

	if len(report.Insights) > 0 {
		sb.WriteString("## Insights\n\n")
		for _, insight := range report.Insights {
			sb.WriteString(fmt.Sprintf("### %s\n\n", insight.Title))
			sb.WriteString(insight.Description + "\n\n")
		}
	}

	if len(report.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range report.Recommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", rec))
		}
	}

	return sb.String()
}

func escapeTable(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatAsText(report *TensionReport) string {
	var sb strings.Builder
	stats := report.Statistics

	sb.WriteString("TENSION REPORT\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 20) + "\n")
	sb.WriteString(report.Summary + "\n\n")

	sb.WriteString("STATISTICS\n")
	sb.WriteString(strings.Repeat("-", 20) + "\n")
	sb.WriteString(fmt.Sprintf("Sessions: %d\n", stats.TotalSessions))
	sb.WriteString(fmt.Sprintf("Distinct tensions: %d\n", stats.DistinctTensions))
	sb.WriteString(fmt.Sprintf("Average confidence: %.2f\n\n", stats.AverageConfidence))

	if len(report.Insights) > 0 {
		sb.WriteString("INSIGHTS\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for i, insight := range report.Insights {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, insight.Title))
			sb.WriteString(fmt.Sprintf("   %s\n\n", insight.Description))
		}
	}

	if len(report.Recommendations) > 0 {
		sb.WriteString("RECOMMENDATIONS\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for i, rec := range report.Recommendations {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec))
		}
	}

	return sb.String()
}

// FormatDOTGraph renders the tension map as a Graphviz digraph. Nodes that
// belong to a cluster are grouped in a subgraph per cluster; a node in
// several clusters is drawn in the first.
func FormatDOTGraph(nodes []tension.NodeActivity, edges []tension.Edge, clusters []tension.Cluster) string {
	var sb strings.Builder
	sb.WriteString("digraph tensions {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n")

	placed := make(map[string]bool)
	for i, c := range clusters {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_%d {\n", i))
		sb.WriteString(fmt.Sprintf("    label=%s;\n", dotQuote(fmt.Sprintf("strength %d", c.Strength))))
		for _, id := range c.Nodes {
			if placed[id] {
				continue
			}
			placed[id] = true
			sb.WriteString(fmt.Sprintf("    %s;\n", dotQuote(id)))
		}
		sb.WriteString("  }\n")
	}

	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("  %s [label=%s, tooltip=%s];\n",
			dotQuote(n.ID),
			dotQuote(fmt.Sprintf("%s (%d)", n.Label, n.Count)),
			dotQuote(string(n.Activity))))
	}

	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("  %s -> %s [label=\"%d\", penwidth=%d];\n",
			dotQuote(e.Source), dotQuote(e.Target), e.Weight, e.Weight))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}
