package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/cortex/internal/journal"
	"github.com/fyrsmithlabs/cortex/internal/reflection"
	"github.com/fyrsmithlabs/cortex/internal/session"
	"github.com/fyrsmithlabs/cortex/internal/tension"
)

var errInvalidArgument = errors.New("invalid argument")

// instrument wraps a tool handler with invocation metrics.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, name)
		res, out, err := h(ctx, req, args)
		s.metrics.DecrementActive(ctx, name)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		return res, out, err
	}
}

func textResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cortex_submit",
		Description: "Record a thought in the journal. The thought is analyzed, its core tension extracted and the session archived.",
	}, instrument(s, "cortex_submit", s.handleSubmit))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cortex_sessions",
		Description: "List archived journal sessions, newest first unless chronological is set.",
	}, instrument(s, "cortex_sessions", s.handleSessions))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cortex_pattern",
		Description: "Report the core tension that recurs across the journal, if any.",
	}, instrument(s, "cortex_pattern", s.handlePattern))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cortex_drift",
		Description: "Compare the dominant tension of the earliest and most recent sessions.",
	}, instrument(s, "cortex_drift", s.handleDrift))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cortex_tension_map",
		Description: "Build the tension graph: one node per core tension, edges for transitions between consecutive sessions, clusters for strong pairs.",
	}, instrument(s, "cortex_tension_map", s.handleTensionMap))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cortex_report",
		Description: "Generate a reflection report with statistics, pattern, drift, clusters and insights.",
	}, instrument(s, "cortex_report", s.handleReport))
}

// ===== SUBMIT =====

type submitInput struct {
	Text string `json:"text" jsonschema:"The thought to record (max 10000 characters)"`
}

type submitOutput struct {
	SessionID   string    `json:"session_id" jsonschema:"Archived session id"`
	CreatedAt   time.Time `json:"created_at" jsonschema:"Session timestamp"`
	CoreTension string    `json:"core_tension" jsonschema:"Core tension extracted from the thought"`
	Confidence  float64   `json:"confidence" jsonschema:"Analysis confidence in [0,1]"`
	Summary     string    `json:"summary" jsonschema:"Reflection on the thought"`
	Conflicts   []string  `json:"conflicts" jsonschema:"Conflicts found inside the thought"`
	Redactions  int       `json:"redactions" jsonschema:"Secrets removed before analysis"`
}

func (s *Server) handleSubmit(ctx context.Context, _ *mcp.CallToolRequest, args submitInput) (*mcp.CallToolResult, submitOutput, error) {
	res, err := s.journal.Submit(ctx, args.Text)
	if err != nil {
		return nil, submitOutput{}, fmt.Errorf("submit failed: %w", err)
	}

	out := submitOutput{
		SessionID:   res.Session.ID,
		CreatedAt:   res.Session.CreatedAt,
		CoreTension: res.Session.CoreTension,
		Confidence:  res.Session.Confidence,
		Summary:     res.Summary,
		Conflicts:   make([]string, 0, len(res.Conflicts)),
		Redactions:  res.Redactions,
	}
	for _, c := range res.Conflicts {
		out.Conflicts = append(out.Conflicts, c.Description)
	}
	return textResult("Core tension: %s", out.CoreTension), out, nil
}

// ===== SESSIONS =====

type sessionsInput struct {
	Chronological bool `json:"chronological,omitempty" jsonschema:"Oldest first (default: newest first)"`
	Limit         int  `json:"limit,omitempty" jsonschema:"Maximum sessions to return (default: all)"`
}

type sessionsOutput struct {
	Total    int               `json:"total" jsonschema:"Sessions in the archive"`
	Sessions []session.Session `json:"sessions" jsonschema:"Returned sessions"`
}

func (s *Server) handleSessions(ctx context.Context, _ *mcp.CallToolRequest, args sessionsInput) (*mcp.CallToolResult, sessionsOutput, error) {
	if args.Limit < 0 {
		return nil, sessionsOutput{}, fmt.Errorf("%w: limit cannot be negative", errInvalidArgument)
	}
	sessions, err := s.journal.Sessions(ctx, args.Chronological)
	if err != nil {
		return nil, sessionsOutput{}, err
	}

	if sessions == nil {
		sessions = []session.Session{}
	}
	out := sessionsOutput{Total: len(sessions), Sessions: sessions}
	if args.Limit > 0 && args.Limit < len(sessions) {
		out.Sessions = sessions[:args.Limit]
	}
	return textResult("Returned %d of %d sessions", len(out.Sessions), out.Total), out, nil
}

// ===== PATTERN / DRIFT =====

type emptyInput struct{}

type patternOutput struct {
	Found       bool   `json:"found" jsonschema:"Whether a recurring tension exists"`
	CoreTension string `json:"core_tension,omitempty" jsonschema:"The recurring core tension"`
}

func (s *Server) handlePattern(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, patternOutput, error) {
	label, ok, err := s.journal.Pattern(ctx)
	if err != nil {
		return nil, patternOutput{}, err
	}
	if !ok {
		return textResult("No recurring tension yet"), patternOutput{}, nil
	}
	return textResult("Recurring tension: %s", label), patternOutput{Found: true, CoreTension: label}, nil
}

type driftOutput struct {
	Found   bool   `json:"found" jsonschema:"Whether there is enough history to measure drift"`
	Status  string `json:"status,omitempty" jsonschema:"consistent or shifted"`
	Earlier string `json:"earlier,omitempty" jsonschema:"Dominant tension of the earliest sessions"`
	Recent  string `json:"recent,omitempty" jsonschema:"Dominant tension of the recent sessions when shifted"`
}

func (s *Server) handleDrift(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, driftOutput, error) {
	d, ok, err := s.journal.Drift(ctx)
	if err != nil {
		return nil, driftOutput{}, err
	}
	if !ok {
		return textResult("Not enough history to measure drift"), driftOutput{}, nil
	}

	out := driftOutput{Found: true, Status: string(d.Status), Earlier: d.Earlier, Recent: d.Recent}
	if d.Status == tension.DriftShifted {
		return textResult("Shifted from %s to %s", d.Earlier, d.Recent), out, nil
	}
	return textResult("Consistently %s", d.Earlier), out, nil
}

// ===== TENSION MAP =====

type mapInput struct {
	Until     string `json:"until,omitempty" jsonschema:"RFC 3339 cutoff; later sessions are ignored"`
	Threshold int    `json:"threshold,omitempty" jsonschema:"Minimum edge weight for a cluster (default: configured)"`
	Format    string `json:"format,omitempty" jsonschema:"json or dot (default: json)"`
}

type mapNode struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
	Activity string    `json:"activity"`
	IsNew    bool      `json:"is_new"`
}

type mapOutput struct {
	Nodes     []mapNode         `json:"nodes" jsonschema:"One node per core tension"`
	Edges     []tension.Edge    `json:"edges" jsonschema:"Transitions between consecutive sessions"`
	Clusters  []tension.Cluster `json:"clusters" jsonschema:"Strongly linked tension pairs"`
	Threshold int               `json:"threshold" jsonschema:"Cluster threshold used"`
	DOT       string            `json:"dot,omitempty" jsonschema:"Graphviz rendering when format is dot"`
}

func parseMapInput(until string, threshold int) (journal.MapOptions, error) {
	var opts journal.MapOptions
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return opts, fmt.Errorf("%w: until must be RFC 3339: %v", errInvalidArgument, err)
		}
		opts.Until = &t
	}
	if threshold < 0 {
		return opts, fmt.Errorf("%w: threshold cannot be negative", errInvalidArgument)
	}
	opts.Threshold = threshold
	return opts, nil
}

func (s *Server) handleTensionMap(ctx context.Context, _ *mcp.CallToolRequest, args mapInput) (*mcp.CallToolResult, mapOutput, error) {
	if args.Format != "" && args.Format != reflection.FormatJSON && args.Format != reflection.FormatDOT {
		return nil, mapOutput{}, fmt.Errorf("%w: format must be json or dot", errInvalidArgument)
	}
	opts, err := parseMapInput(args.Until, args.Threshold)
	if err != nil {
		return nil, mapOutput{}, err
	}

	m, err := s.journal.TensionMap(ctx, opts)
	if err != nil {
		return nil, mapOutput{}, err
	}

	out := mapOutput{
		Nodes:     make([]mapNode, 0, len(m.Nodes)),
		Edges:     m.Edges,
		Clusters:  m.Clusters,
		Threshold: m.Threshold,
	}
	for _, n := range m.Nodes {
		out.Nodes = append(out.Nodes, mapNode{
			ID:       n.ID,
			Label:    n.Label,
			Count:    n.Count,
			LastSeen: n.LastSeen,
			Activity: string(n.Activity),
			IsNew:    n.IsNew,
		})
	}
	if args.Format == reflection.FormatDOT {
		out.DOT = reflection.FormatDOTGraph(m.Nodes, m.Edges, m.Clusters)
		return textResult("%s", out.DOT), out, nil
	}
	return textResult("%d tensions, %d transitions, %d clusters", len(out.Nodes), len(out.Edges), len(out.Clusters)), out, nil
}

// ===== REPORT =====

type reportInput struct {
	Until       string `json:"until,omitempty" jsonschema:"RFC 3339 cutoff; later sessions are ignored"`
	Threshold   int    `json:"threshold,omitempty" jsonschema:"Minimum edge weight for a cluster"`
	MaxInsights int    `json:"max_insights,omitempty" jsonschema:"Maximum insights to include (default: 10)"`
	Format      string `json:"format,omitempty" jsonschema:"json, yaml, markdown, text or dot (default: markdown)"`
}

type reportOutput struct {
	ReportID        string    `json:"report_id" jsonschema:"Report identifier"`
	GeneratedAt     time.Time `json:"generated_at" jsonschema:"Report generation time"`
	Summary         string    `json:"summary" jsonschema:"High-level summary"`
	TotalSessions   int       `json:"total_sessions" jsonschema:"Sessions covered"`
	InsightCount    int       `json:"insight_count" jsonschema:"Number of insights generated"`
	Recommendations []string  `json:"recommendations" jsonschema:"Suggested next steps"`
	Format          string    `json:"format" jsonschema:"Format of formatted_text"`
	FormattedText   string    `json:"formatted_text" jsonschema:"Rendered report"`
}

func (s *Server) handleReport(ctx context.Context, _ *mcp.CallToolRequest, args reportInput) (*mcp.CallToolResult, reportOutput, error) {
	format := args.Format
	if format == "" {
		format = reflection.FormatMarkdown
	}
	opts, err := parseMapInput(args.Until, args.Threshold)
	if err != nil {
		return nil, reportOutput{}, err
	}

	report, err := s.journal.Report(ctx, reflection.ReportOptions{
		Until:       opts.Until,
		Threshold:   opts.Threshold,
		MaxInsights: args.MaxInsights,
	})
	if err != nil {
		return nil, reportOutput{}, fmt.Errorf("report generation failed: %w", err)
	}

	text, err := reflection.FormatReport(report, format)
	if err != nil {
		return nil, reportOutput{}, err
	}

	out := reportOutput{
		ReportID:        report.ID,
		GeneratedAt:     report.GeneratedAt,
		Summary:         report.Summary,
		TotalSessions:   report.Statistics.TotalSessions,
		InsightCount:    len(report.Insights),
		Recommendations: report.Recommendations,
		Format:          format,
		FormattedText:   string(text),
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	return textResult("%s", out.FormattedText), out, nil
}
