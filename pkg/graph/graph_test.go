package graph

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdge(t *testing.T) {
	g := NewGraph(4)

	require.NoError(t, g.AddEdge(0, 1))
	require.NoError(t, g.AddEdge(1, 0))
	require.NoError(t, g.AddEdge(0, 1))
	require.NoError(t, g.AddEdge(1, 2))

	assert.Equal(t, []int{1}, g.Neighbors(0))
	assert.ElementsMatch(t, []int{0, 2}, g.Neighbors(1))
	assert.Equal(t, []int{1}, g.Neighbors(2))
	assert.Empty(t, g.Neighbors(3))
	assert.Equal(t, 2, g.NumEdges())
	assert.Equal(t, 4, g.NumNodes())
	assert.True(t, g.HasEdge(2, 1))
	assert.False(t, g.HasEdge(0, 2))
	assert.NoError(t, g.Validate())
}

func TestAddEdgeSelfLoop(t *testing.T) {
	g := NewGraph(2)

	require.NoError(t, g.AddEdge(1, 1))
	require.NoError(t, g.AddEdge(1, 1))

	assert.Equal(t, []int{1}, g.Neighbors(1))
	assert.Equal(t, 1, g.Degree(1))
	assert.NoError(t, g.Validate())

	// gonum rejects self edges, the adapter drops them
	assert.Equal(t, 0, g.Undirected().Edges().Len())
}

func TestAddEdgeOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		a, b int
	}{
		{name: "negative a", a: -1, b: 0},
		{name: "b equals n", a: 0, b: 3},
		{name: "both too large", a: 7, b: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(3)
			err := g.AddEdge(tt.a, tt.b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNodeOutOfRange))
			assert.Equal(t, 0, g.NumEdges())
		})
	}
}

func TestNeighborsOutOfRangePanics(t *testing.T) {
	g := NewGraph(2)
	assert.Panics(t, func() { g.Neighbors(2) })
}

func TestDegrees(t *testing.T) {
	g := NewGraph(5)
	for _, e := range [][2]int{{0, 1}, {0, 2}, {0, 3}, {3, 4}} {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}

	assert.Equal(t, []int{3, 1, 1, 2, 1}, g.Degrees())
	assert.Equal(t, 3, g.Degree(0))
}

func TestGonumAdapters(t *testing.T) {
	g := NewGraph(4)
	for _, e := range [][2]int{{0, 1}, {1, 2}, {2, 3}} {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}

	ug := g.Undirected()
	assert.Equal(t, 4, ug.Nodes().Len())
	assert.Equal(t, 3, ug.Edges().Len())
	assert.True(t, ug.HasEdgeBetween(2, 1))

	dg := g.Directed()
	assert.Equal(t, 4, dg.Nodes().Len())
	assert.True(t, dg.HasEdgeFromTo(1, 2))
	assert.True(t, dg.HasEdgeFromTo(2, 1))
	assert.False(t, dg.HasEdgeFromTo(0, 3))
}

func TestValidateDetectsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(g *Graph)
	}{
		{"asymmetric adjacency", func(g *Graph) { g.adjacency[0] = append(g.adjacency[0], 2) }},
		{"neighbor out of range", func(g *Graph) { g.adjacency[1] = append(g.adjacency[1], 7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(3)
			require.NoError(t, g.AddEdge(0, 1))
			require.NoError(t, g.Validate())

			tt.corrupt(g)
			assert.Error(t, g.Validate())
		})
	}
}

func TestParseEdgeList(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"0 1",
		"1 2",
		"",
		"2 1",
		"3",
		"a b",
		"1 2 3",
		"  2\t3  ",
	}, "\n")

	g, stats, err := ParseEdgeList(strings.NewReader(input), 5)
	require.NoError(t, err)

	assert.Equal(t, 3, g.NumEdges())
	assert.Equal(t, 3, stats.Edges)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 5, stats.SkippedLines)
	assert.Equal(t, 9, stats.Lines)
	assert.True(t, g.HasEdge(2, 3))
	assert.Empty(t, g.Neighbors(4))
	assert.NoError(t, g.Validate())
}

func TestParseEdgeListOutOfRange(t *testing.T) {
	_, _, err := ParseEdgeList(strings.NewReader("0 1\n1 5\n"), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeOutOfRange))
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseEdgeListRejectsEmptyUniverse(t *testing.T) {
	_, _, err := ParseEdgeList(strings.NewReader("0 1\n"), 0)
	assert.Error(t, err)
}

func TestLoadEdgeList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.txt")
	require.NoError(t, os.WriteFile(path, []byte("0 1\n1 2\n"), 0644))

	g, stats, err := LoadEdgeList(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumEdges())
	assert.Equal(t, 2, stats.Edges)

	_, _, err = LoadEdgeList(filepath.Join(t.TempDir(), "missing.txt"), 3)
	assert.Error(t, err)
}
