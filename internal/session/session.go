// Package session defines the journal session model and the archive that
// persists sessions through a storage backend.
package session

import (
	"sort"
	"time"
)

// Defaults applied when the analysis payload omits a field.
const (
	DefaultCoreTension = "Unresolved Tension"
	DefaultReflection  = "No summary provided."
	DefaultConfidence  = 0.5
)

// Session is one analyzed thought.
//
// JSON keys are camelCase so archives exported from the browser client
// decode without translation.
type Session struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	CoreTension string    `json:"coreTension"`
	Confidence  float64   `json:"confidence"`
	Reflection  string    `json:"reflection"`
}

// Chronological returns a copy of sessions sorted ascending by CreatedAt.
// Sessions sharing a timestamp keep their relative order.
func Chronological(sessions []Session) []Session {
	sorted := make([]Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// IDs returns the ids of sessions in slice order.
func IDs(sessions []Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	return ids
}
