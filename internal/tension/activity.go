package tension

import (
	"time"

	"github.com/fyrsmithlabs/cortex/internal/session"
)

// Activity buckets a node by how long ago it was last seen.
type Activity string

const (
	ActivityActive  Activity = "active"
	ActivityFading  Activity = "fading"
	ActivityDormant Activity = "dormant"
)

// Activity thresholds, measured from LastSeen.
const (
	ActiveWithin = 3 * 24 * time.Hour
	FadingWithin = 10 * 24 * time.Hour
	NewWithin    = time.Minute
)

// ClassifyActivity buckets lastSeen relative to now.
func ClassifyActivity(lastSeen, now time.Time) Activity {
	age := now.Sub(lastSeen)
	switch {
	case age < ActiveWithin:
		return ActivityActive
	case age < FadingWithin:
		return ActivityFading
	default:
		return ActivityDormant
	}
}

// IsNew reports whether lastSeen falls within the last minute.
func IsNew(lastSeen, now time.Time) bool {
	return now.Sub(lastSeen) < NewWithin
}

// NodeActivity is a node annotated with its recency.
type NodeActivity struct {
	Node     `yaml:",inline"`
	Activity Activity `json:"activity" yaml:"activity"`
	IsNew    bool     `json:"isNew" yaml:"is_new"`
}

// AnnotateNodes classifies every node relative to now.
func AnnotateNodes(nodes []Node, now time.Time) []NodeActivity {
	out := make([]NodeActivity, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeActivity{
			Node:     n,
			Activity: ClassifyActivity(n.LastSeen, now),
			IsNew:    IsNew(n.LastSeen, now),
		})
	}
	return out
}

// Mark places a session on the archive timeline.
type Mark struct {
	SessionID   string    `json:"sessionId" yaml:"session_id"`
	CoreTension string    `json:"coreTension" yaml:"core_tension"`
	CreatedAt   time.Time `json:"createdAt" yaml:"created_at"`
	// Position is the session's offset between Origin and now, in [0,1].
	Position float64 `json:"position" yaml:"position"`
}

// Timeline spans the archive from its first session to now.
type Timeline struct {
	Origin time.Time `json:"origin" yaml:"origin"`
	Latest time.Time `json:"latest" yaml:"latest"`
	Now    time.Time `json:"now" yaml:"now"`
	Marks  []Mark    `json:"marks" yaml:"marks"`
}

// BuildTimeline orders sessions chronologically and positions each one
// between the earliest session and now. An empty history yields a timeline
// anchored at now with no marks.
func BuildTimeline(sessions []session.Session, now time.Time) Timeline {
	tl := Timeline{Origin: now, Latest: now, Now: now, Marks: make([]Mark, 0, len(sessions))}
	if len(sessions) == 0 {
		return tl
	}

	sorted := session.Chronological(sessions)
	tl.Origin = sorted[0].CreatedAt
	tl.Latest = sorted[len(sorted)-1].CreatedAt

	span := now.Sub(tl.Origin)
	for _, s := range sorted {
		pos := 1.0
		if span > 0 {
			pos = float64(s.CreatedAt.Sub(tl.Origin)) / float64(span)
		}
		tl.Marks = append(tl.Marks, Mark{
			SessionID:   s.ID,
			CoreTension: s.CoreTension,
			CreatedAt:   s.CreatedAt,
			Position:    clamp01(pos),
		})
	}
	return tl
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
