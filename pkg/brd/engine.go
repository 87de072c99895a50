package brd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/rumor-spread-service/pkg/graph"
)

// ErrInvalidThreshold is returned for thresholds outside [0, 1]
var ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

// Result is the final partition produced by one diffusion run
type Result struct {
	Infected   []int        `json:"infected"`
	Wise       []int        `json:"wise"`
	Rounds     int          `json:"rounds"`
	Iterations int          `json:"iterations"`
	History    []RoundStats `json:"history"`
	RuntimeMS  int64        `json:"runtime_ms"`
}

// RoundStats describes the conversions made in one productive round
type RoundStats struct {
	Round        int `json:"round"`
	NewSpreaders int `json:"new_spreaders"`
	NewWise      int `json:"new_wise"`
	Spreaders    int `json:"spreaders"`
	Wise         int `json:"wise"`
}

// Engine runs synchronous best-response dynamics over a read-only graph.
// Run may be called concurrently; the graph is never written.
type Engine struct {
	graph      *graph.Graph
	parallel   bool
	chunkSize  int
	numWorkers int
	progress   bool
	logger     zerolog.Logger
	tracker    *ConversionTracker
}

// NewEngine snapshots the performance settings of config
func NewEngine(g *graph.Graph, config *Config) *Engine {
	chunkSize := config.ChunkSize()
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	numWorkers := config.NumWorkers()
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &Engine{
		graph:      g,
		parallel:   config.Parallel(),
		chunkSize:  chunkSize,
		numWorkers: numWorkers,
		progress:   config.EnableProgress(),
		logger:     config.CreateLogger(),
	}
}

// WithLogger replaces the engine logger
func (e *Engine) WithLogger(logger zerolog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithTracker attaches a conversion tracker
func (e *Engine) WithTracker(tracker *ConversionTracker) *Engine {
	e.tracker = tracker
	return e
}

// Run executes the diffusion with the threshold and tracking settings of config
func Run(ctx context.Context, g *graph.Graph, seeds Seeds, config *Config) (*Result, error) {
	engine := NewEngine(g, config)

	if config.TrackConversions() {
		tracker := NewConversionTracker(config.TrackingOutputFile())
		defer tracker.Close()
		engine.WithTracker(tracker)
	}

	return engine.Run(ctx, config.Threshold(), seeds)
}

// Run computes the fixpoint reached from seeds under threshold q.
//
// Every round reads the frozen state of the previous round and writes a
// separate buffer, so no node sees a conversion made in the same round.
func (e *Engine) Run(ctx context.Context, q float64, seeds Seeds) (*Result, error) {
	startTime := time.Now()

	if q < 0 || q > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, q)
	}

	n := e.graph.NumNodes()
	current := make([]NodeState, n)
	locked := make([]bool, n)

	for _, node := range seeds.Spreaders {
		if node < 0 || node >= n {
			return nil, fmt.Errorf("spreader seed %d: %w", node, graph.ErrNodeOutOfRange)
		}
		current[node] = Spreader
		locked[node] = true
	}
	// wise seeding overrides spreader seeding
	for _, node := range seeds.Wise {
		if node < 0 || node >= n {
			return nil, fmt.Errorf("wise seed %d: %w", node, graph.ErrNodeOutOfRange)
		}
		current[node] = Wise
		locked[node] = true
	}

	spreaders, wise := 0, 0
	pending := make([]int, 0, n)
	for node := 0; node < n; node++ {
		switch current[node] {
		case Spreader:
			spreaders++
		case Wise:
			wise++
		}
		// isolated nodes can never reach a threshold
		if !locked[node] && e.graph.Degree(node) > 0 {
			pending = append(pending, node)
		}
	}

	result := &Result{History: make([]RoundStats, 0)}
	next := make([]NodeState, n)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result.Iterations++
		copy(next, current)

		converted := e.evaluate(pending, current, next, q)
		if converted == 0 {
			break
		}

		result.Rounds++
		stats := RoundStats{Round: result.Rounds}

		remaining := pending[:0]
		for _, node := range pending {
			switch next[node] {
			case Untouched:
				remaining = append(remaining, node)
			case Spreader:
				stats.NewSpreaders++
				e.tracker.LogConversion(result.Rounds, node, Spreader)
			case Wise:
				stats.NewWise++
				e.tracker.LogConversion(result.Rounds, node, Wise)
			}
		}
		pending = remaining

		spreaders += stats.NewSpreaders
		wise += stats.NewWise
		stats.Spreaders = spreaders
		stats.Wise = wise
		result.History = append(result.History, stats)

		e.logger.Debug().
			Int("round", stats.Round).
			Int("new_spreaders", stats.NewSpreaders).
			Int("new_wise", stats.NewWise).
			Int("pending", len(pending)).
			Msg("Round completed")

		current, next = next, current
	}

	result.Infected = make([]int, 0, spreaders)
	result.Wise = make([]int, 0, wise)
	for node, state := range current {
		switch state {
		case Spreader:
			result.Infected = append(result.Infected, node)
		case Wise:
			result.Wise = append(result.Wise, node)
		}
	}
	result.RuntimeMS = time.Since(startTime).Milliseconds()

	if e.progress {
		e.logger.Info().
			Int("nodes", n).
			Int("rounds", result.Rounds).
			Int("infected", len(result.Infected)).
			Int("wise", len(result.Wise)).
			Int64("runtime_ms", result.RuntimeMS).
			Msg("Diffusion reached fixpoint")
	}

	return result, nil
}

// evaluate writes the next state of every pending node and returns how many
// converted. Chunks of pending nodes are independent within a round because
// they only read current and each writes its own entries of next.
func (e *Engine) evaluate(pending []int, current, next []NodeState, q float64) int {
	if !e.parallel || len(pending) <= e.chunkSize || e.numWorkers == 1 {
		return e.evaluateRange(pending, current, next, q)
	}

	numChunks := (len(pending) + e.chunkSize - 1) / e.chunkSize
	counts := make([]int, numChunks)
	chunks := make(chan int, numChunks)
	for c := 0; c < numChunks; c++ {
		chunks <- c
	}
	close(chunks)

	workers := e.numWorkers
	if workers > numChunks {
		workers = numChunks
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunks {
				start := c * e.chunkSize
				end := start + e.chunkSize
				if end > len(pending) {
					end = len(pending)
				}
				counts[c] = e.evaluateRange(pending[start:end], current, next, q)
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, count := range counts {
		total += count
	}
	return total
}

func (e *Engine) evaluateRange(nodes []int, current, next []NodeState, q float64) int {
	converted := 0
	for _, node := range nodes {
		state := e.decide(node, current, q)
		if state != Untouched {
			next[node] = state
			converted++
		}
	}
	return converted
}

// decide applies the best-response rule to one Untouched node. The spreader
// threshold is checked first, so a node meeting both becomes a Spreader.
func (e *Engine) decide(node int, current []NodeState, q float64) NodeState {
	neighbors := e.graph.Neighbors(node)
	degree := len(neighbors)
	if degree == 0 {
		return Untouched
	}

	spreaders, wise := 0, 0
	for _, neighbor := range neighbors {
		switch current[neighbor] {
		case Spreader:
			spreaders++
		case Wise:
			wise++
		}
	}

	if float64(spreaders)/float64(degree) >= q {
		return Spreader
	}
	if float64(wise)/float64(degree) >= q {
		return Wise
	}
	return Untouched
}
