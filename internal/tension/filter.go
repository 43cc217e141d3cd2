package tension

import (
	"time"

	"github.com/fyrsmithlabs/cortex/internal/session"
)

// FilterByTime returns the sessions created at or before until, in input order.
func FilterByTime(sessions []session.Session, until time.Time) []session.Session {
	out := make([]session.Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.CreatedAt.After(until) {
			out = append(out, s)
		}
	}
	return out
}
