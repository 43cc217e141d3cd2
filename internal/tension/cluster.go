package tension

import "strings"

// DefaultClusterThreshold is the minimum edge weight for a cluster.
const DefaultClusterThreshold = 2

// Cluster is an unordered pair of tensions linked by a strong transition.
type Cluster struct {
	ID       string   `json:"id" yaml:"id"`
	Nodes    []string `json:"nodes" yaml:"nodes"`
	Strength int      `json:"strength" yaml:"strength"`
}

// ClusterID returns the order-independent id for the pair a, b.
func ClusterID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, "::")
}

// BuildClusters pairs tensions connected by an edge of at least threshold
// weight. A threshold below 1 means DefaultClusterThreshold.
//
// Each unordered pair yields one cluster. When both directions qualify, the
// edge listed first wins and its weight becomes the strength; the other
// direction is not added.
//
// If nodes is non-empty, edges whose endpoints are not among them are
// ignored.
func BuildClusters(nodes []Node, edges []Edge, threshold int) []Cluster {
	if threshold < 1 {
		threshold = DefaultClusterThreshold
	}

	var known map[string]struct{}
	if len(nodes) > 0 {
		known = make(map[string]struct{}, len(nodes))
		for _, n := range nodes {
			known[n.ID] = struct{}{}
		}
	}

	clusters := make([]Cluster, 0)
	used := make(map[string]struct{})

	for _, e := range edges {
		if e.Weight < threshold {
			continue
		}
		if known != nil {
			if _, ok := known[e.Source]; !ok {
				continue
			}
			if _, ok := known[e.Target]; !ok {
				continue
			}
		}

		id := ClusterID(e.Source, e.Target)
		if _, dup := used[id]; dup {
			continue
		}
		used[id] = struct{}{}

		clusters = append(clusters, Cluster{
			ID:       id,
			Nodes:    []string{e.Source, e.Target},
			Strength: e.Weight,
		})
	}
	return clusters
}
