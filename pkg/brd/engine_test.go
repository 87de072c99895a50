package brd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/rumor-spread-service/pkg/graph"
)

func buildGraph(t *testing.T, n int, edges [][2]int) *graph.Graph {
	t.Helper()
	g := graph.NewGraph(n)
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func randomGraph(t *testing.T, n, m int, seed int64) *graph.Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g := graph.NewGraph(n)
	for i := 0; i < m; i++ {
		require.NoError(t, g.AddEdge(rng.Intn(n), rng.Intn(n)))
	}
	return g
}

func quietEngine(g *graph.Graph, config *Config) *Engine {
	return NewEngine(g, config).WithLogger(zerolog.Nop())
}

func pathGraph(t *testing.T) *graph.Graph {
	return buildGraph(t, 4, [][2]int{{0, 1}, {1, 2}, {2, 3}})
}

func TestRunPathGraph(t *testing.T) {
	engine := quietEngine(pathGraph(t), NewConfig())

	result, err := engine.Run(context.Background(), 0.5, Seeds{Spreaders: []int{0}})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, result.Infected)
	assert.Empty(t, result.Wise)
	assert.Equal(t, 3, result.Rounds)
	assert.Equal(t, 4, result.Iterations)

	// one node per round: conversions made in a round are not visible to it
	require.Len(t, result.History, 3)
	for i, stats := range result.History {
		assert.Equal(t, i+1, stats.Round)
		assert.Equal(t, 1, stats.NewSpreaders)
		assert.Equal(t, 0, stats.NewWise)
		assert.Equal(t, i+2, stats.Spreaders)
	}
}

func TestRunThresholdRules(t *testing.T) {
	tests := []struct {
		name         string
		n            int
		edges        [][2]int
		q            float64
		seeds        Seeds
		wantInfected []int
		wantWise     []int
		wantRounds   int
	}{
		{
			name:         "zero threshold converts every reachable node to spreader",
			n:            4,
			edges:        [][2]int{{0, 1}, {1, 2}},
			q:            0,
			seeds:        Seeds{Wise: []int{0}},
			wantInfected: []int{1, 2},
			wantWise:     []int{0},
			wantRounds:   1,
		},
		{
			name:         "spreader wins a tie",
			n:            3,
			edges:        [][2]int{{0, 1}, {1, 2}},
			q:            0.5,
			seeds:        Seeds{Spreaders: []int{0}, Wise: []int{2}},
			wantInfected: []int{0, 1},
			wantWise:     []int{2},
			wantRounds:   1,
		},
		{
			name:         "wise spreads when spreaders fall short",
			n:            4,
			edges:        [][2]int{{0, 1}, {1, 2}, {1, 3}, {2, 3}},
			q:            0.5,
			seeds:        Seeds{Spreaders: []int{0}, Wise: []int{2}},
			wantInfected: []int{0},
			wantWise:     []int{1, 2, 3},
			wantRounds:   2,
		},
		{
			name:         "full threshold needs unanimous neighbors",
			n:            3,
			edges:        [][2]int{{0, 1}, {1, 2}},
			q:            1,
			seeds:        Seeds{Spreaders: []int{0}},
			wantInfected: []int{0},
			wantWise:     []int{},
			wantRounds:   0,
		},
		{
			name:         "isolated node stays untouched",
			n:            3,
			edges:        [][2]int{{0, 1}},
			q:            0,
			seeds:        Seeds{Spreaders: []int{0}},
			wantInfected: []int{0, 1},
			wantWise:     []int{},
			wantRounds:   1,
		},
		{
			name:         "no seeds and positive threshold is already a fixpoint",
			n:            3,
			edges:        [][2]int{{0, 1}, {1, 2}},
			q:            0.1,
			seeds:        Seeds{},
			wantInfected: []int{},
			wantWise:     []int{},
			wantRounds:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := quietEngine(buildGraph(t, tt.n, tt.edges), NewConfig())

			result, err := engine.Run(context.Background(), tt.q, tt.seeds)
			require.NoError(t, err)

			assert.Equal(t, tt.wantInfected, result.Infected)
			assert.Equal(t, tt.wantWise, result.Wise)
			assert.Equal(t, tt.wantRounds, result.Rounds)
		})
	}
}

func TestRunSeedOverlapWiseWins(t *testing.T) {
	g := buildGraph(t, 3, [][2]int{{0, 1}, {1, 2}})
	engine := quietEngine(g, NewConfig())

	result, err := engine.Run(context.Background(), 0.5, Seeds{
		Spreaders: []int{0, 1},
		Wise:      []int{1},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0}, result.Infected)
	assert.Equal(t, []int{1, 2}, result.Wise)
}

func TestRunInvariants(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g := randomGraph(t, 200, 400, seed)
		rng := rand.New(rand.NewSource(seed))
		perm := rng.Perm(g.NumNodes())
		seeds := Seeds{Spreaders: perm[:5], Wise: perm[5:15]}
		q := rng.Float64() * 0.6

		result, err := quietEngine(g, NewConfig()).Run(context.Background(), q, seeds)
		require.NoError(t, err)

		// termination
		assert.LessOrEqual(t, result.Rounds, g.NumNodes())
		assert.Equal(t, result.Rounds+1, result.Iterations)

		// monotonicity
		prev := len(seeds.Spreaders) + len(seeds.Wise)
		for _, stats := range result.History {
			assert.Greater(t, stats.NewSpreaders+stats.NewWise, 0)
			assert.GreaterOrEqual(t, stats.Spreaders+stats.Wise, prev)
			prev = stats.Spreaders + stats.Wise
		}
		assert.Equal(t, prev, len(result.Infected)+len(result.Wise))

		// seeds are locked
		infected := toSet(result.Infected)
		wise := toSet(result.Wise)
		for _, node := range seeds.Spreaders {
			assert.True(t, infected[node], "spreader seed %d flipped", node)
		}
		for _, node := range seeds.Wise {
			assert.True(t, wise[node], "wise seed %d flipped", node)
		}

		// partitions are disjoint and isolated non-seeds stay untouched
		for node := range infected {
			assert.False(t, wise[node])
		}
		for node := 0; node < g.NumNodes(); node++ {
			if g.Degree(node) == 0 && !containsNode(perm[:15], node) {
				assert.False(t, infected[node] || wise[node], "isolated node %d converted", node)
			}
		}
	}
}

func TestRunDeterministicAndParallelMatchesSequential(t *testing.T) {
	g := randomGraph(t, 2000, 5000, 42)
	rng := rand.New(rand.NewSource(7))
	perm := rng.Perm(g.NumNodes())
	seeds := Seeds{Spreaders: perm[:20], Wise: perm[20:40]}

	sequential := quietEngine(g, NewConfig())
	first, err := sequential.Run(context.Background(), 0.2, seeds)
	require.NoError(t, err)
	second, err := sequential.Run(context.Background(), 0.2, seeds)
	require.NoError(t, err)

	config := NewConfig()
	config.Set("performance.parallel", true)
	config.Set("performance.chunk_size", 64)
	config.Set("performance.num_workers", 4)
	parallel, err := quietEngine(g, config).Run(context.Background(), 0.2, seeds)
	require.NoError(t, err)

	assert.Equal(t, first.Infected, second.Infected)
	assert.Equal(t, first.Wise, second.Wise)
	assert.Equal(t, first.Infected, parallel.Infected)
	assert.Equal(t, first.Wise, parallel.Wise)
	assert.Equal(t, first.History, parallel.History)
}

func TestRunRejectsBadInput(t *testing.T) {
	engine := quietEngine(pathGraph(t), NewConfig())

	_, err := engine.Run(context.Background(), 1.5, Seeds{Spreaders: []int{0}})
	assert.True(t, errors.Is(err, ErrInvalidThreshold))

	_, err = engine.Run(context.Background(), -0.1, Seeds{})
	assert.True(t, errors.Is(err, ErrInvalidThreshold))

	_, err = engine.Run(context.Background(), 0.5, Seeds{Spreaders: []int{4}})
	assert.True(t, errors.Is(err, graph.ErrNodeOutOfRange))

	_, err = engine.Run(context.Background(), 0.5, Seeds{Wise: []int{-1}})
	assert.True(t, errors.Is(err, graph.ErrNodeOutOfRange))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietEngine(pathGraph(t), NewConfig()).Run(ctx, 0.5, Seeds{Spreaders: []int{0}})
	assert.ErrorIs(t, err, context.Canceled)
}

type trackedEvent struct {
	Round int    `json:"round"`
	Node  int    `json:"node"`
	State string `json:"state"`
}

func readEvents(t *testing.T, data []byte) []trackedEvent {
	t.Helper()
	var events []trackedEvent
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var event trackedEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	return events
}

func TestConversionTracker(t *testing.T) {
	var buf bytes.Buffer
	engine := quietEngine(pathGraph(t), NewConfig()).WithTracker(NewConversionTrackerWriter(&buf))

	_, err := engine.Run(context.Background(), 0.5, Seeds{Spreaders: []int{0}})
	require.NoError(t, err)

	events := readEvents(t, buf.Bytes())
	require.Len(t, events, 3)
	for i, event := range events {
		assert.Equal(t, i+1, event.Round)
		assert.Equal(t, i+1, event.Node)
		assert.Equal(t, "spreader", event.State)
	}
}

func TestRunWithConfigTracksToFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "conversions.jsonl")

	config := NewConfig()
	config.Set("algorithm.threshold", 0.5)
	config.Set("logging.level", "error")
	config.Set("analysis.track_conversions", true)
	config.Set("analysis.output_file", output)

	g := buildGraph(t, 3, [][2]int{{0, 1}, {1, 2}})
	result, err := Run(context.Background(), g, Seeds{Wise: []int{0}}, config)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, result.Wise)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	events := readEvents(t, data)
	require.Len(t, events, 2)
	assert.Equal(t, "wise", events[0].State)
	assert.Equal(t, 2, events[1].Round)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestConversionTrackerWarnsOnWriteError(t *testing.T) {
	var logs bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&logs)
	defer func() { log.Logger = previous }()

	tracker := NewConversionTrackerWriter(failingWriter{})
	tracker.LogConversion(2, 5, Wise)
	tracker.Close()

	assert.Contains(t, logs.String(), "Failed to write conversion event")
	assert.Contains(t, logs.String(), "disk full")
	assert.Contains(t, logs.String(), `"node":5`)
}

func TestNilTrackerIsSafe(t *testing.T) {
	var tracker *ConversionTracker
	assert.NotPanics(t, func() {
		tracker.LogConversion(1, 1, Spreader)
		tracker.Close()
	})
}

func TestNodeStateString(t *testing.T) {
	assert.Equal(t, "untouched", Untouched.String())
	assert.Equal(t, "spreader", Spreader.String())
	assert.Equal(t, "wise", Wise.String())
	assert.Equal(t, "unknown", NodeState(9).String())
}

func toSet(nodes []int) map[int]bool {
	set := make(map[int]bool, len(nodes))
	for _, node := range nodes {
		set[node] = true
	}
	return set
}

func containsNode(nodes []int, target int) bool {
	for _, node := range nodes {
		if node == target {
			return true
		}
	}
	return false
}
