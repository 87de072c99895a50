package graph

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
)

// ErrNodeOutOfRange is returned when a node index falls outside 0..n-1.
var ErrNodeOutOfRange = errors.New("node index out of range")

// Graph is an unweighted undirected graph over a fixed universe of n nodes.
// Adjacency is kept as plain slices (one neighbor list per node) with a
// membership set so that AddEdge stays idempotent.
type Graph struct {
	numNodes  int
	adjacency [][]int
	edges     map[edgeKey]struct{}
}

type edgeKey struct {
	lo, hi int
}

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b}
}

// NewGraph creates a graph with numNodes isolated nodes
func NewGraph(numNodes int) *Graph {
	if numNodes < 0 {
		numNodes = 0
	}
	return &Graph{
		numNodes:  numNodes,
		adjacency: make([][]int, numNodes),
		edges:     make(map[edgeKey]struct{}),
	}
}

// AddEdge connects a and b in both directions. Adding an edge that already
// exists is a no-op. A self-loop lists the node once as its own neighbor.
func (g *Graph) AddEdge(a, b int) error {
	if !g.contains(a) || !g.contains(b) {
		return fmt.Errorf("%w: a=%d, b=%d, numNodes=%d", ErrNodeOutOfRange, a, b, g.numNodes)
	}

	key := newEdgeKey(a, b)
	if _, exists := g.edges[key]; exists {
		return nil
	}
	g.edges[key] = struct{}{}

	g.adjacency[a] = append(g.adjacency[a], b)
	if a != b {
		g.adjacency[b] = append(g.adjacency[b], a)
	}
	return nil
}

// Neighbors returns the neighbor list of a. The slice is shared with the
// graph and must not be modified. Panics if a is out of range.
func (g *Graph) Neighbors(a int) []int {
	return g.adjacency[a]
}

// HasEdge reports whether a and b are adjacent
func (g *Graph) HasEdge(a, b int) bool {
	if !g.contains(a) || !g.contains(b) {
		return false
	}
	_, exists := g.edges[newEdgeKey(a, b)]
	return exists
}

// Degree returns the number of neighbors of a
func (g *Graph) Degree(a int) int {
	return len(g.adjacency[a])
}

// Degrees returns a fresh degree table indexed by node
func (g *Graph) Degrees() []int {
	degrees := make([]int, g.numNodes)
	for i, neighbors := range g.adjacency {
		degrees[i] = len(neighbors)
	}
	return degrees
}

func (g *Graph) NumNodes() int { return g.numNodes }
func (g *Graph) NumEdges() int { return len(g.edges) }

// Validate checks that every adjacency entry is in range and mirrored
func (g *Graph) Validate() error {
	for a, neighbors := range g.adjacency {
		for _, b := range neighbors {
			if !g.contains(b) {
				return fmt.Errorf("%w: invalid neighbor %d for node %d", ErrNodeOutOfRange, b, a)
			}
			if !g.HasEdge(a, b) {
				return fmt.Errorf("edge %d-%d missing from edge set", a, b)
			}
			if a != b && !containsInt(g.adjacency[b], a) {
				return fmt.Errorf("adjacency not symmetric: %d lists %d but not vice versa", a, b)
			}
		}
	}
	return nil
}

// Undirected converts the graph to a gonum undirected graph. Node IDs match
// node indices and self-loops are dropped since gonum's simple graphs reject them.
func (g *Graph) Undirected() *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	for i := 0; i < g.numNodes; i++ {
		ug.AddNode(simple.Node(int64(i)))
	}
	for key := range g.edges {
		if key.lo == key.hi {
			continue
		}
		ug.SetEdge(simple.Edge{F: simple.Node(int64(key.lo)), T: simple.Node(int64(key.hi))})
	}
	return ug
}

// Directed converts the graph to a gonum directed graph with every edge
// present in both directions, which is what PageRank expects.
func (g *Graph) Directed() *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for i := 0; i < g.numNodes; i++ {
		dg.AddNode(simple.Node(int64(i)))
	}
	for key := range g.edges {
		if key.lo == key.hi {
			continue
		}
		dg.SetEdge(simple.Edge{F: simple.Node(int64(key.lo)), T: simple.Node(int64(key.hi))})
		dg.SetEdge(simple.Edge{F: simple.Node(int64(key.hi)), T: simple.Node(int64(key.lo))})
	}
	return dg
}

func (g *Graph) contains(a int) bool {
	return a >= 0 && a < g.numNodes
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
