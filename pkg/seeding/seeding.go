package seeding

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph/network"

	"github.com/gilchrisn/rumor-spread-service/pkg/graph"
)

var (
	ErrTooManySpreaders = errors.New("number of spreaders exceeds number of nodes")
	ErrUnknownStrategy  = errors.New("unknown strategy")
)

// Strategy names
const (
	None       = "none"
	Random     = "random"
	HighDegree = "high_degree"
	PageRank   = "pagerank"
)

// Descriptions of the built-in strategies, keyed by name
var Descriptions = map[string]string{
	None:       "no wise nodes",
	Random:     "w nodes drawn uniformly from the non-spreaders",
	HighDegree: "the w highest-degree non-spreaders",
	PageRank:   "the w non-spreaders with the highest PageRank",
}

// Builtin returns the names of the built-in strategies in sorted order
func Builtin() []string {
	names := make([]string, 0, len(Descriptions))
	for name := range Descriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strategy chooses the initial wise nodes for one trial. Implementations
// must not keep per-trial state; they are shared by concurrent trials.
type Strategy interface {
	Name() string
	SelectWise(rng *rand.Rand, spreaders []int, w int) []int
}

// SelectSpreaders draws k distinct nodes uniformly from 0..n-1
func SelectSpreaders(rng *rand.Rand, n, k int) ([]int, error) {
	if k < 0 {
		return nil, fmt.Errorf("number of spreaders must be non-negative: %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: k=%d, n=%d", ErrTooManySpreaders, k, n)
	}

	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	return sample(rng, pool, k), nil
}

// sample moves m uniformly chosen elements of pool to its front with a
// partial Fisher-Yates shuffle and returns a copy of them.
func sample(rng *rand.Rand, pool []int, m int) []int {
	if m > len(pool) {
		m = len(pool)
	}
	for i := 0; i < m; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	picked := make([]int, m)
	copy(picked, pool[:m])
	return picked
}

func spreaderMask(n int, spreaders []int) []bool {
	mask := make([]bool, n)
	for _, node := range spreaders {
		if node >= 0 && node < n {
			mask[node] = true
		}
	}
	return mask
}

// noneStrategy never seeds wise nodes
type noneStrategy struct{}

func (noneStrategy) Name() string { return None }

func (noneStrategy) SelectWise(*rand.Rand, []int, int) []int { return []int{} }

// randomStrategy samples min(w, n-k) wise nodes from the non-spreaders
type randomStrategy struct {
	numNodes int
}

func (s *randomStrategy) Name() string { return Random }

func (s *randomStrategy) SelectWise(rng *rand.Rand, spreaders []int, w int) []int {
	if w <= 0 {
		return []int{}
	}

	excluded := spreaderMask(s.numNodes, spreaders)
	available := make([]int, 0, s.numNodes)
	for node := 0; node < s.numNodes; node++ {
		if !excluded[node] {
			available = append(available, node)
		}
	}
	return sample(rng, available, w)
}

// rankedStrategy takes the first w non-spreaders of a fixed node ranking
type rankedStrategy struct {
	name    string
	ranking func() []int
}

func (s *rankedStrategy) Name() string { return s.name }

func (s *rankedStrategy) SelectWise(_ *rand.Rand, spreaders []int, w int) []int {
	if w <= 0 {
		return []int{}
	}

	ranking := s.ranking()
	excluded := spreaderMask(len(ranking), spreaders)
	wise := make([]int, 0, w)
	for _, node := range ranking {
		if len(wise) == w {
			break
		}
		if !excluded[node] {
			wise = append(wise, node)
		}
	}
	return wise
}

// rankByScore orders nodes by descending score; equal scores keep ascending
// index order.
func rankByScore(n int, score func(node int) float64) []int {
	ranking := make([]int, n)
	for i := range ranking {
		ranking[i] = i
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return score(ranking[i]) > score(ranking[j])
	})
	return ranking
}

// DegreeRanking ranks nodes by degree, highest first, ties by ascending index
func DegreeRanking(degrees []int) []int {
	return rankByScore(len(degrees), func(node int) float64 { return float64(degrees[node]) })
}

// PageRankRanking ranks nodes by PageRank over the symmetric directed view
// of g, highest first, ties by ascending index.
func PageRankRanking(g *graph.Graph, damping, tolerance float64) []int {
	scores := network.PageRank(g.Directed(), damping, tolerance)
	return rankByScore(g.NumNodes(), func(node int) float64 { return scores[int64(node)] })
}

// Registry holds the strategies available for one graph together with the
// per-graph tables they use. Degrees never change, so rankings are computed
// once and shared read-only by every trial.
type Registry struct {
	graph      *graph.Graph
	degrees    []int
	strategies map[string]Strategy

	degreeOnce   sync.Once
	degreeRank   []int
	pagerankOnce sync.Once
	pagerankRank []int
}

// NewRegistry creates a registry with the built-in strategies for g
func NewRegistry(g *graph.Graph) *Registry {
	r := &Registry{
		graph:      g,
		degrees:    g.Degrees(),
		strategies: make(map[string]Strategy),
	}

	r.Register(noneStrategy{})
	r.Register(&randomStrategy{numNodes: g.NumNodes()})
	r.Register(&rankedStrategy{name: HighDegree, ranking: r.degreeRanking})
	r.Register(&rankedStrategy{name: PageRank, ranking: r.pageRankRanking})

	return r
}

// Register adds or replaces a strategy
func (r *Registry) Register(strategy Strategy) {
	r.strategies[strategy.Name()] = strategy
}

// Get retrieves a strategy by name
func (r *Registry) Get(name string) (Strategy, error) {
	strategy, exists := r.strategies[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return strategy, nil
}

// Names returns the registered strategy names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) degreeRanking() []int {
	r.degreeOnce.Do(func() {
		r.degreeRank = DegreeRanking(r.degrees)
	})
	return r.degreeRank
}

func (r *Registry) pageRankRanking() []int {
	r.pagerankOnce.Do(func() {
		r.pagerankRank = PageRankRanking(r.graph, 0.85, 1e-6)
	})
	return r.pagerankRank
}
