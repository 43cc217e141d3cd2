package tension

import "github.com/fyrsmithlabs/cortex/internal/session"

// DriftStatus reports whether the dominant tension changed over time.
type DriftStatus string

const (
	// DriftConsistent means the early and recent windows share a dominant tension.
	DriftConsistent DriftStatus = "consistent"
	// DriftShifted means the dominant tension changed.
	DriftShifted DriftStatus = "shifted"
)

const (
	// MinDriftSessions is the history length required before drift is measured.
	MinDriftSessions = 5

	minDriftWindow = 2
)

// Drift compares the dominant tension of the early and recent windows.
// Recent is empty when Status is DriftConsistent.
type Drift struct {
	Status  DriftStatus `json:"status" yaml:"status"`
	Earlier string      `json:"earlier" yaml:"earlier"`
	Recent  string      `json:"recent,omitempty" yaml:"recent,omitempty"`
}

// DetectPatternDrift compares the first and last 40% of history.
//
// Each window's dominant tension is the label occurring at least twice
// (first seen wins ties). Every session counts, including those without a
// core tension; an empty dominant label means the window has no mode. When
// either window lacks a mode, no drift is reported.
func DetectPatternDrift(sessions []session.Session) (Drift, bool) {
	n := len(sessions)
	if n < MinDriftSessions {
		return Drift{}, false
	}

	// floor(0.4 * n) without float rounding
	windowSize := n * 2 / 5
	if windowSize < minDriftWindow {
		return Drift{}, false
	}

	sorted := session.Chronological(sessions)
	early := windowMode(sorted[:windowSize])
	recent := windowMode(sorted[n-windowSize:])
	if early == "" || recent == "" {
		return Drift{}, false
	}

	if early == recent {
		return Drift{Status: DriftConsistent, Earlier: early}, true
	}
	return Drift{Status: DriftShifted, Earlier: early, Recent: recent}, true
}

func windowMode(window []session.Session) string {
	counts := newLabelCounts(len(window))
	for _, s := range window {
		counts.add(s.CoreTension)
	}
	mode, ok := counts.top(MinPatternCount)
	if !ok {
		return ""
	}
	return mode
}
