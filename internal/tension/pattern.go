package tension

import "github.com/fyrsmithlabs/cortex/internal/session"

const (
	// MinPatternSessions is the history length required before a pattern
	// is reported.
	MinPatternSessions = 3

	// MinPatternCount is the number of occurrences a tension needs to
	// count as recurring.
	MinPatternCount = 2
)

// labelCounts counts labels while remembering first-seen order, so ties can
// be broken deterministically.
type labelCounts struct {
	order  []string
	counts map[string]int
}

func newLabelCounts(capacity int) *labelCounts {
	return &labelCounts{
		order:  make([]string, 0, capacity),
		counts: make(map[string]int, capacity),
	}
}

func (l *labelCounts) add(label string) {
	if _, ok := l.counts[label]; !ok {
		l.order = append(l.order, label)
	}
	l.counts[label]++
}

// top returns the most frequent label with at least minCount occurrences.
// The label seen first wins ties.
func (l *labelCounts) top(minCount int) (string, bool) {
	best, max := "", 0
	for _, label := range l.order {
		if c := l.counts[label]; c > max {
			best, max = label, c
		}
	}
	if max < minCount {
		return "", false
	}
	return best, true
}

// DetectCoreTensionPattern returns the core tension that occurs most often,
// provided it occurs at least twice in a history of at least three sessions.
// Sessions without a core tension are ignored.
func DetectCoreTensionPattern(sessions []session.Session) (string, bool) {
	if len(sessions) < MinPatternSessions {
		return "", false
	}

	counts := newLabelCounts(len(sessions))
	for _, s := range sessions {
		if s.CoreTension == "" {
			continue
		}
		counts.add(s.CoreTension)
	}
	return counts.top(MinPatternCount)
}
