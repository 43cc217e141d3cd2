package tension

import (
	"time"

	"github.com/fyrsmithlabs/cortex/internal/session"
)

// Node is a distinct core tension.
type Node struct {
	ID       string    `json:"id" yaml:"id"`
	Label    string    `json:"label" yaml:"label"`
	Count    int       `json:"count" yaml:"count"`
	LastSeen time.Time `json:"lastSeen" yaml:"last_seen"`
}

// Edge is a directed transition between consecutive core tensions.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Weight int    `json:"weight" yaml:"weight"`
}

// EdgeID returns the id of the edge from source to target.
func EdgeID(source, target string) string {
	return source + "->" + target
}

// BuildNodes groups sessions by core tension, in order of first appearance.
// LastSeen is the latest CreatedAt among a node's sessions.
func BuildNodes(sessions []session.Session) []Node {
	nodes := make([]Node, 0)
	index := make(map[string]int)

	for _, s := range sessions {
		if s.CoreTension == "" {
			continue
		}

		i, ok := index[s.CoreTension]
		if !ok {
			index[s.CoreTension] = len(nodes)
			nodes = append(nodes, Node{
				ID:       s.CoreTension,
				Label:    s.CoreTension,
				Count:    1,
				LastSeen: s.CreatedAt,
			})
			continue
		}

		nodes[i].Count++
		if s.CreatedAt.After(nodes[i].LastSeen) {
			nodes[i].LastSeen = s.CreatedAt
		}
	}
	return nodes
}

// BuildEdges counts transitions between chronologically consecutive
// sessions whose core tensions are both present and different. Edges are
// returned in order of first occurrence.
func BuildEdges(sessions []session.Session) []Edge {
	edges := make([]Edge, 0)
	if len(sessions) < 2 {
		return edges
	}

	sorted := session.Chronological(sessions)
	index := make(map[string]int)

	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1].CoreTension, sorted[i].CoreTension
		if prev == "" || curr == "" || prev == curr {
			continue
		}

		id := EdgeID(prev, curr)
		if j, ok := index[id]; ok {
			edges[j].Weight++
			continue
		}
		index[id] = len(edges)
		edges = append(edges, Edge{ID: id, Source: prev, Target: curr, Weight: 1})
	}
	return edges
}
