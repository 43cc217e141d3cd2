// Package reflection turns the session archive into a tension report.
//
// A report combines archive statistics, the recurring core tension, drift
// between early and recent sessions, the tension map (nodes with activity,
// edges, clusters) and insights derived from them:
//
//	reporter := reflection.NewReporter(archive)
//	report, err := reporter.Generate(ctx, reflection.ReportOptions{})
//	if err != nil {
//	    return err
//	}
//	out, err := reflection.FormatReport(report, reflection.FormatMarkdown)
//
// Reports render as JSON, YAML, markdown, plain text or a Graphviz DOT
// digraph of the tension map.
package reflection
