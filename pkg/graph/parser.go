package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseStats summarizes an edge-list read
type ParseStats struct {
	Lines        int `json:"lines"`
	Edges        int `json:"edges"`
	Duplicates   int `json:"duplicates"`
	SkippedLines int `json:"skipped_lines"`
}

// LoadEdgeList opens an edge-list file and parses it into a graph with
// numNodes nodes.
func LoadEdgeList(path string, numNodes int) (*Graph, *ParseStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseEdgeList(file, numNodes)
}

// ParseEdgeList reads "a b" pairs, one edge per line. Lines that do not hold
// exactly two integers are skipped. A well-formed pair naming a node outside
// 0..numNodes-1 aborts the parse.
func ParseEdgeList(r io.Reader, numNodes int) (*Graph, *ParseStats, error) {
	if numNodes <= 0 {
		return nil, nil, fmt.Errorf("number of nodes must be positive: %d", numNodes)
	}

	g := NewGraph(numNodes)
	stats := &ParseStats{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		stats.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			stats.SkippedLines++
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			stats.SkippedLines++
			continue
		}

		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA != nil || errB != nil {
			stats.SkippedLines++
			continue
		}

		before := g.NumEdges()
		if err := g.AddEdge(a, b); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", stats.Lines, err)
		}
		if g.NumEdges() == before {
			stats.Duplicates++
		} else {
			stats.Edges++
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading edge list: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid graph: %w", err)
	}

	return g, stats, nil
}
