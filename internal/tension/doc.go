// Package tension implements the analytics core of Cortex: pure functions
// over a slice of journal sessions.
//
// # Detectors
//
//   - DetectCoreTensionPattern finds the core tension that recurs most often.
//   - DetectPatternDrift compares the dominant tension of the earliest and
//     most recent windows of history.
//
// # Tension graph
//
//   - BuildNodes groups sessions by core tension.
//   - BuildEdges counts transitions between consecutive tensions.
//   - BuildClusters pairs tensions connected by strong transitions.
//   - FilterByTime restricts any of the above to a point in time.
//
// Activity and Timeline describe how recent nodes and sessions are.
//
// Every function is deterministic for a given input and never mutates its
// arguments. Input order does not matter: functions that care about time
// sort by CreatedAt (stable, so equal timestamps keep input order).
//
// Labels are compared exactly. "Fear" and "fear" are different tensions,
// and an empty core tension never becomes a node or an edge endpoint.
package tension
