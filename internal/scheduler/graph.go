package scheduler

import (
	"slices"
)

// Node wraps a schedule with a caller assigned identifier.
type Node struct {
	ID       int
	Schedule Schedule
}

// Graph holds schedule nodes and precedence edges between them. An edge
// from A to B means A's hours end at or before B's begin.
type Graph struct {
	nodes []Node
	edges map[int][]int
}

// NewGraph returns a graph seeded with the given schedules, numbered from zero.
func NewGraph(schedules ...Schedule) *Graph {
	g := &Graph{}
	for i, s := range schedules {
		g.AddNode(Node{ID: i, Schedule: s})
	}
	return g
}

// AddNode inserts node unless an equal node is already present.
func (g *Graph) AddNode(node Node) {
	if slices.Contains(g.nodes, node) {
		return
	}
	g.nodes = append(g.nodes, node)
}

// AddEdge records that from precedes to. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to Node) {
	if g.edges == nil {
		g.edges = make(map[int][]int)
	}
	if slices.Contains(g.edges[from.ID], to.ID) {
		return
	}
	g.edges[from.ID] = append(g.edges[from.ID], to.ID)
}

// Clear drops all nodes and edges.
func (g *Graph) Clear() {
	g.nodes = nil
	g.edges = nil
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// Successors returns the ids that id has an edge to.
func (g *Graph) Successors(id int) []int {
	return slices.Clone(g.edges[id])
}

// BuildEdges recomputes precedence edges for every unordered pair of nodes.
// Conflicting pairs get no edge.
func (g *Graph) BuildEdges() {
	g.edges = nil
	for i := 0; i < len(g.nodes); i++ {
		for j := i + 1; j < len(g.nodes); j++ {
			a, b := g.nodes[i], g.nodes[j]
			switch {
			case precedes(a.Schedule, b.Schedule):
				g.AddEdge(a, b)
			case precedes(b.Schedule, a.Schedule):
				g.AddEdge(b, a)
			}
		}
	}
}

// HasOverlap reports whether candidate overlaps any held node.
func (g *Graph) HasOverlap(candidate Schedule) bool {
	for _, n := range g.nodes {
		if Overlaps(n.Schedule, candidate) {
			return true
		}
	}
	return false
}

// Ordered returns the schedules in precedence order. Nodes that become ready
// at the same time are taken by earliest weekly opening. Nodes left on a
// cycle are appended in that same order.
func (g *Graph) Ordered() []Schedule {
	if len(g.nodes) == 0 {
		return nil
	}
	g.BuildEdges()

	byID := make(map[int]Node, len(g.nodes))
	indegree := make(map[int]int, len(g.nodes))
	for _, n := range g.nodes {
		byID[n.ID] = n
		indegree[n.ID] += 0
		for _, to := range g.edges[n.ID] {
			indegree[to]++
		}
	}

	less := func(a, b int) int {
		switch {
		case before(byID[a].Schedule, byID[b].Schedule):
			return -1
		case before(byID[b].Schedule, byID[a].Schedule):
			return 1
		}
		return a - b
	}

	var ready []int
	for _, n := range g.nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	out := make([]Schedule, 0, len(g.nodes))
	done := make(map[int]bool, len(g.nodes))
	for len(ready) > 0 {
		slices.SortFunc(ready, less)
		id := ready[0]
		ready = ready[1:]
		done[id] = true
		out = append(out, byID[id].Schedule)
		for _, to := range g.edges[id] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(out) < len(g.nodes) {
		var rest []int
		for _, n := range g.nodes {
			if !done[n.ID] {
				rest = append(rest, n.ID)
			}
		}
		slices.SortFunc(rest, less)
		for _, id := range rest {
			out = append(out, byID[id].Schedule)
		}
	}
	return out
}
