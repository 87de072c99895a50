package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/rumor-spread-service/pkg/brd"
	"github.com/gilchrisn/rumor-spread-service/pkg/graph"
	"github.com/gilchrisn/rumor-spread-service/pkg/seeding"
)

// ErrInvalidConfiguration marks a configuration rejected before any trial ran
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Configuration is one (q, k, w, strategy, trials) point
type Configuration struct {
	Threshold float64 `json:"threshold"`
	Spreaders int     `json:"spreaders"`
	Wise      int     `json:"wise"`
	Strategy  string  `json:"strategy"`
	Trials    int     `json:"trials"`
}

func (c Configuration) String() string {
	return fmt.Sprintf("q=%g k=%d w=%d strategy=%s trials=%d",
		c.Threshold, c.Spreaders, c.Wise, c.Strategy, c.Trials)
}

// TrialResult is the outcome of a single trial
type TrialResult struct {
	Trial    int       `json:"trial"`
	Seeds    brd.Seeds `json:"seeds"`
	Infected int       `json:"infected"`
	Wise     int       `json:"wise"`
	Rounds   int       `json:"rounds"`
}

// Runner executes trials against one read-only graph. The strategy registry
// and its degree table are built once here and shared by every trial.
type Runner struct {
	graph          *graph.Graph
	registry       *seeding.Registry
	engine         *brd.Engine
	seed           int64
	parallelTrials bool
	numWorkers     int
	progress       bool
	logger         zerolog.Logger
}

// NewRunner creates a runner for g
func NewRunner(g *graph.Graph, config *Config) *Runner {
	numWorkers := config.NumWorkers()
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &Runner{
		graph:          g,
		registry:       seeding.NewRegistry(g),
		engine:         brd.NewEngine(g, config.EngineConfig()),
		seed:           config.RandomSeed(),
		parallelTrials: config.ParallelTrials(),
		numWorkers:     numWorkers,
		progress:       config.EnableProgress(),
		logger:         config.CreateLogger(),
	}
}

// WithLogger replaces the runner and engine loggers
func (r *Runner) WithLogger(logger zerolog.Logger) *Runner {
	r.logger = logger
	r.engine.WithLogger(logger)
	return r
}

// Validate checks a configuration against the graph without running it
func (r *Runner) Validate(cfg Configuration) error {
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalidConfiguration, cfg.Threshold)
	}
	if cfg.Spreaders < 0 {
		return fmt.Errorf("%w: negative number of spreaders %d", ErrInvalidConfiguration, cfg.Spreaders)
	}
	if cfg.Spreaders > r.graph.NumNodes() {
		return fmt.Errorf("%w: %w: k=%d, n=%d", ErrInvalidConfiguration,
			seeding.ErrTooManySpreaders, cfg.Spreaders, r.graph.NumNodes())
	}
	if cfg.Wise < 0 {
		return fmt.Errorf("%w: negative number of wise nodes %d", ErrInvalidConfiguration, cfg.Wise)
	}
	if cfg.Trials < 1 {
		return fmt.Errorf("%w: trials must be at least 1, got %d", ErrInvalidConfiguration, cfg.Trials)
	}
	if _, err := r.registry.Get(cfg.Strategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

// Run executes cfg.Trials independent trials and returns |Infected| for
// each, in trial order. The configuration is validated before any trial.
func (r *Runner) Run(ctx context.Context, cfg Configuration) ([]int, error) {
	if err := r.Validate(cfg); err != nil {
		return nil, err
	}

	strategy, _ := r.registry.Get(cfg.Strategy)
	startTime := time.Now()
	outcomes := make([]int, cfg.Trials)

	if r.parallelTrials && r.numWorkers > 1 && cfg.Trials > 1 {
		eg, ctx := errgroup.WithContext(ctx)
		eg.SetLimit(r.numWorkers)
		for trial := 0; trial < cfg.Trials; trial++ {
			trial := trial
			eg.Go(func() error {
				result, err := r.trial(ctx, cfg, strategy, trial)
				if err != nil {
					return err
				}
				outcomes[trial] = result.Infected
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		for trial := 0; trial < cfg.Trials; trial++ {
			result, err := r.trial(ctx, cfg, strategy, trial)
			if err != nil {
				return nil, err
			}
			outcomes[trial] = result.Infected
		}
	}

	r.logger.Debug().
		Str("configuration", cfg.String()).
		Ints("outcomes", outcomes).
		Int64("runtime_ms", time.Since(startTime).Milliseconds()).
		Msg("Configuration completed")

	return outcomes, nil
}

// Trial runs a single trial of cfg. Trial t of any configuration uses the
// same random stream, so strategies compared at the same k see the same
// spreader seeds.
func (r *Runner) Trial(ctx context.Context, cfg Configuration, trial int) (*TrialResult, error) {
	if err := r.Validate(cfg); err != nil {
		return nil, err
	}
	strategy, _ := r.registry.Get(cfg.Strategy)
	return r.trial(ctx, cfg, strategy, trial)
}

func (r *Runner) trial(ctx context.Context, cfg Configuration, strategy seeding.Strategy, trial int) (*TrialResult, error) {
	rng := rand.New(rand.NewSource(TrialSeed(r.seed, trial)))

	spreaders, err := seeding.SelectSpreaders(rng, r.graph.NumNodes(), cfg.Spreaders)
	if err != nil {
		return nil, fmt.Errorf("trial %d: %w", trial, err)
	}
	seeds := brd.Seeds{
		Spreaders: spreaders,
		Wise:      strategy.SelectWise(rng, spreaders, cfg.Wise),
	}

	result, err := r.engine.Run(ctx, cfg.Threshold, seeds)
	if err != nil {
		return nil, fmt.Errorf("trial %d: %w", trial, err)
	}

	return &TrialResult{
		Trial:    trial,
		Seeds:    seeds,
		Infected: len(result.Infected),
		Wise:     len(result.Wise),
		Rounds:   result.Rounds,
	}, nil
}

// TrialSeed derives the seed of one trial from the base seed with a
// splitmix64 step, so neighboring trials get unrelated streams.
func TrialSeed(base int64, trial int) int64 {
	z := uint64(base) + uint64(trial+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z)
}
