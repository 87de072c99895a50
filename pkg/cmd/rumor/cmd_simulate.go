package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/rumor-spread-service/pkg/experiment"
	"github.com/gilchrisn/rumor-spread-service/pkg/report"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the trials of a single configuration",
		Long: `Runs --trials independent trials of one configuration and prints the
number of infected nodes per trial together with their mean and standard
deviation.`,
		Example: `  rumor simulate --graph musae_facebook.txt --nodes 22470 -q 0.1 -k 10 -w 5 --strategy high_degree`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, graphBindings, simulateBindings)
			if err != nil {
				return err
			}
			g, err := loadGraph(config)
			if err != nil {
				return err
			}

			runner := experiment.NewRunner(g, config)
			cfg := config.Configuration()
			jsonOut, _ := cmd.Flags().GetBool("json")

			if details, _ := cmd.Flags().GetBool("details"); details {
				return runDetailed(cmd, runner, cfg, jsonOut)
			}

			outcomes, err := runner.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printSimulation(cmd.OutOrStdout(), cfg, outcomes, jsonOut)
		},
	}

	addGraphFlags(cmd)
	cmd.Flags().Float64P("threshold", "q", 0.1, "Adoption threshold in [0, 1]")
	cmd.Flags().IntP("spreaders", "k", 10, "Number of initial rumor spreaders")
	cmd.Flags().IntP("wise", "w", 0, "Number of initial wise nodes")
	cmd.Flags().String("strategy", "none", "Wise-node seeding strategy")
	cmd.Flags().Int("trials", 10, "Number of independent trials")
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().Bool("details", false, "Report seeds, wise count and rounds of every trial")

	return cmd
}

var simulateBindings = map[string]string{
	"threshold": "experiment.threshold",
	"spreaders": "experiment.spreaders",
	"wise":      "experiment.wise",
	"strategy":  "experiment.strategy",
	"trials":    "experiment.trials",
}

// runDetailed runs the trials one at a time and reports each of them.
// Outcomes are the same as those of Runner.Run for the same seed.
func runDetailed(cmd *cobra.Command, runner *experiment.Runner, cfg experiment.Configuration, jsonOut bool) error {
	if err := runner.Validate(cfg); err != nil {
		return err
	}

	trials := make([]*experiment.TrialResult, cfg.Trials)
	for trial := range trials {
		result, err := runner.Trial(cmd.Context(), cfg, trial)
		if err != nil {
			return err
		}
		trials[trial] = result
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(trials)
	}

	fmt.Fprintf(out, "Configuration: %s\n", cfg)
	outcomes := make([]int, len(trials))
	for i, result := range trials {
		outcomes[i] = result.Infected
		fmt.Fprintf(out, "  Trial %d: %d infected, %d wise, %d rounds (spreaders %v, wise seeds %v)\n",
			result.Trial, result.Infected, result.Wise, result.Rounds,
			result.Seeds.Spreaders, result.Seeds.Wise)
	}
	summary := report.Summarize(outcomes)
	fmt.Fprintf(out, "Average infected: %.2f, Std Dev: %.2f\n", summary.Mean, summary.StdDev)
	return nil
}

func printSimulation(w io.Writer, cfg experiment.Configuration, outcomes []int, jsonOut bool) error {
	summary := report.Summarize(outcomes)

	if jsonOut {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report.PointResult{
			Configuration: cfg,
			Summary:       summary,
			Outcomes:      outcomes,
		})
	}

	fmt.Fprintf(w, "Configuration: %s\n", cfg)
	for i, infected := range outcomes {
		fmt.Fprintf(w, "  Trial %d: %d infected\n", i, infected)
	}
	fmt.Fprintf(w, "Average infected: %.2f, Std Dev: %.2f\n", summary.Mean, summary.StdDev)
	fmt.Fprintf(w, "Min: %.0f, Max: %.0f\n", summary.Min, summary.Max)
	return nil
}
