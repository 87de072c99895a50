package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/rumor-spread-service/pkg/experiment"
	"github.com/gilchrisn/rumor-spread-service/pkg/report"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Compare seeding strategies over a grid of k and w",
		Long: `Runs every combination of spreader count, strategy and wise count,
logs the average number of infected nodes of each point, writes one
error-bar plot per spreader count and optionally a JSON results file.

The grid defaults to k in {10,100,1000,10000}, w in {0,5,10,20,50,100} and
the random and high_degree strategies; override it with flags or the
sweep section of --config.`,
		Example: `  rumor sweep --graph musae_facebook.txt --nodes 22470 --plot-dir plots --results results.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, graphBindings, sweepBindings)
			if err != nil {
				return err
			}
			g, err := loadGraph(config)
			if err != nil {
				return err
			}

			runner := experiment.NewRunner(g, config)
			parallelPoints, _ := cmd.Flags().GetBool("parallel-points")

			points, err := runSweep(cmd, runner, config.Plan(), parallelPoints)
			if err != nil {
				return err
			}

			return writeOutputs(config.PlotDir(), config.ResultsFile(), points)
		},
	}

	addGraphFlags(cmd)
	cmd.Flags().Float64P("threshold", "q", 0.1, "Adoption threshold in [0, 1]")
	cmd.Flags().IntSlice("spreader-values", nil, "Spreader counts k to sweep")
	cmd.Flags().IntSlice("wise-values", nil, "Wise counts w to sweep")
	cmd.Flags().StringSlice("strategies", nil, "Seeding strategies to compare")
	cmd.Flags().Int("trials", 10, "Number of trials per point")
	cmd.Flags().Bool("parallel-points", false, "Run points concurrently instead of trials")
	cmd.Flags().String("plot-dir", ".", "Directory for the plots (empty to skip plotting)")
	cmd.Flags().String("results", "", "JSON results file")

	return cmd
}

var sweepBindings = map[string]string{
	"threshold":       "experiment.threshold",
	"spreader-values": "sweep.spreader_values",
	"wise-values":     "sweep.wise_values",
	"strategies":      "sweep.strategies",
	"trials":          "experiment.trials",
	"plot-dir":        "output.plot_dir",
	"results":         "output.results_file",
}

func runSweep(cmd *cobra.Command, runner *experiment.Runner, plan experiment.Plan, parallelPoints bool) ([]experiment.Point, error) {
	progress := func(completed, total int, point experiment.Point) {
		summary := report.Summarize(point.Outcomes)
		log.Info().
			Int("k", point.Configuration.Spreaders).
			Str("strategy", point.Configuration.Strategy).
			Int("w", point.Configuration.Wise).
			Str("average_infected", fmt.Sprintf("%.2f", summary.Mean)).
			Str("std_dev", fmt.Sprintf("%.2f", summary.StdDev)).
			Int("completed", completed).
			Int("total", total).
			Msg("Point completed")
	}

	if parallelPoints {
		return runner.SweepParallel(cmd.Context(), plan, progress)
	}
	return runner.Sweep(cmd.Context(), plan, progress)
}

func writeOutputs(plotDir, resultsFile string, points []experiment.Point) error {
	if plotDir != "" {
		paths, err := report.RenderAll(plotDir, report.GroupByK(points))
		if err != nil {
			return err
		}
		for _, path := range paths {
			log.Info().Str("file", path).Msg("Plot saved")
		}
	}

	if resultsFile != "" {
		file, err := os.Create(resultsFile)
		if err != nil {
			return fmt.Errorf("failed to create results file: %w", err)
		}
		defer file.Close()

		if err := report.WriteJSON(file, points); err != nil {
			return err
		}
		log.Info().Str("file", resultsFile).Int("points", len(points)).Msg("Results written")
	}

	return nil
}
