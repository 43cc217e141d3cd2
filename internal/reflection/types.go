package reflection

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/cortex/internal/session"
	"github.com/fyrsmithlabs/cortex/internal/tension"
)

// SessionSource loads the archive a report is built from.
type SessionSource interface {
	Load(ctx context.Context) ([]session.Session, error)
}

// ReportOptions configures report generation.
type ReportOptions struct {
	// Until drops sessions created after it. Nil keeps everything.
	Until *time.Time
	// Threshold is the cluster edge weight threshold; < 1 means default.
	Threshold int
	// MaxInsights caps the insight list (default 10).
	MaxInsights int
	// TopN caps Statistics.TopTensions (default 5).
	TopN int
}

// TensionReport summarizes the archive: statistics, recurring pattern,
// drift, the tension map and derived insights.
type TensionReport struct {
	ID              string                 `json:"id" yaml:"id"`
	GeneratedAt     time.Time              `json:"generatedAt" yaml:"generated_at"`
	Until           *time.Time             `json:"until,omitempty" yaml:"until,omitempty"`
	Summary         string                 `json:"summary" yaml:"summary"`
	Statistics      Statistics             `json:"statistics" yaml:"statistics"`
	Pattern         *PatternFinding        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Drift           *tension.Drift         `json:"drift,omitempty" yaml:"drift,omitempty"`
	Nodes           []tension.NodeActivity `json:"nodes" yaml:"nodes"`
	Edges           []tension.Edge         `json:"edges" yaml:"edges"`
	Clusters        []tension.Cluster      `json:"clusters" yaml:"clusters"`
	Insights        []Insight              `json:"insights" yaml:"insights"`
	Recommendations []string               `json:"recommendations" yaml:"recommendations"`
}

// PatternFinding is the recurring core tension and how often it appears.
type PatternFinding struct {
	CoreTension string `json:"coreTension" yaml:"core_tension"`
	Count       int    `json:"count" yaml:"count"`
}

// Statistics are counts over the reported sessions.
type Statistics struct {
	TotalSessions     int            `json:"totalSessions" yaml:"total_sessions"`
	DistinctTensions  int            `json:"distinctTensions" yaml:"distinct_tensions"`
	AverageConfidence float64        `json:"averageConfidence" yaml:"average_confidence"`
	FirstSession      *time.Time     `json:"firstSession,omitempty" yaml:"first_session,omitempty"`
	LastSession       *time.Time     `json:"lastSession,omitempty" yaml:"last_session,omitempty"`
	TopTensions       []TensionCount `json:"topTensions" yaml:"top_tensions"`
}

type TensionCount struct {
	CoreTension string `json:"coreTension" yaml:"core_tension"`
	Count       int    `json:"count" yaml:"count"`
}

// Insight is an observation derived from the report.
type Insight struct {
	Title           string   `json:"title" yaml:"title"`
	Description     string   `json:"description" yaml:"description"`
	Category        string   `json:"category" yaml:"category"`
	Confidence      float64  `json:"confidence" yaml:"confidence"`
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

// Insight categories.
const (
	CategoryPattern     = "pattern"
	CategoryDrift       = "drift"
	CategoryOscillation = "oscillation"
	CategoryCluster     = "cluster"
	CategoryConfidence  = "confidence"
	CategoryActivity    = "activity"
)
