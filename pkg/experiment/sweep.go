package experiment

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Plan is a grid of configurations sharing threshold and trial count
type Plan struct {
	Threshold      float64  `json:"threshold"`
	Trials         int      `json:"trials"`
	SpreaderValues []int    `json:"spreader_values"`
	WiseValues     []int    `json:"wise_values"`
	Strategies     []string `json:"strategies"`
}

// Point is one evaluated configuration of a sweep
type Point struct {
	Configuration Configuration `json:"configuration"`
	Outcomes      []int         `json:"outcomes"`
}

// ProgressCallback reports completed points out of total
type ProgressCallback func(completed, total int, point Point)

// Configurations expands the plan in k, strategy, w order
func (p Plan) Configurations() []Configuration {
	configs := make([]Configuration, 0, len(p.SpreaderValues)*len(p.Strategies)*len(p.WiseValues))
	for _, k := range p.SpreaderValues {
		for _, strategy := range p.Strategies {
			for _, w := range p.WiseValues {
				configs = append(configs, Configuration{
					Threshold: p.Threshold,
					Spreaders: k,
					Wise:      w,
					Strategy:  strategy,
					Trials:    p.Trials,
				})
			}
		}
	}
	return configs
}

// Sweep runs every configuration of the plan. The whole plan is validated
// first, so an invalid point rejects the sweep before any simulation work.
// Points are returned in plan order.
func (r *Runner) Sweep(ctx context.Context, plan Plan, progress ProgressCallback) ([]Point, error) {
	configs := plan.Configurations()
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: sweep plan is empty", ErrInvalidConfiguration)
	}
	for _, cfg := range configs {
		if err := r.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg, err)
		}
	}

	startTime := time.Now()
	r.logger.Info().
		Int("nodes", r.graph.NumNodes()).
		Int("edges", r.graph.NumEdges()).
		Int("configurations", len(configs)).
		Float64("threshold", plan.Threshold).
		Int("trials", plan.Trials).
		Msg("Starting sweep")

	points := make([]Point, len(configs))
	for i, cfg := range configs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		outcomes, err := r.Run(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg, err)
		}
		points[i] = Point{Configuration: cfg, Outcomes: outcomes}

		if r.progress {
			r.logger.Info().
				Int("k", cfg.Spreaders).
				Str("strategy", cfg.Strategy).
				Int("w", cfg.Wise).
				Float64("average_infected", mean(outcomes)).
				Msg("Configuration completed")
		}
		if progress != nil {
			progress(i+1, len(configs), points[i])
		}
	}

	r.logger.Info().
		Int("configurations", len(configs)).
		Int64("runtime_ms", time.Since(startTime).Milliseconds()).
		Msg("Sweep completed")

	return points, nil
}

// SweepParallel runs configurations concurrently instead of parallelizing
// trials inside each one. Results are identical to Sweep; the callback is
// invoked in completion order.
func (r *Runner) SweepParallel(ctx context.Context, plan Plan, progress ProgressCallback) ([]Point, error) {
	configs := plan.Configurations()
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: sweep plan is empty", ErrInvalidConfiguration)
	}
	for _, cfg := range configs {
		if err := r.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg, err)
		}
	}

	sequential := *r
	sequential.parallelTrials = false

	points := make([]Point, len(configs))
	completed := make(chan Point)
	done := make(chan struct{})
	go func() {
		defer close(done)
		count := 0
		for point := range completed {
			count++
			if progress != nil {
				progress(count, len(configs), point)
			}
		}
	}()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.numWorkers)
	for i, cfg := range configs {
		i, cfg := i, cfg
		eg.Go(func() error {
			outcomes, err := sequential.Run(egCtx, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", cfg, err)
			}
			points[i] = Point{Configuration: cfg, Outcomes: outcomes}
			completed <- points[i]
			return nil
		})
	}
	err := eg.Wait()
	close(completed)
	<-done
	if err != nil {
		return nil, err
	}

	return points, nil
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
