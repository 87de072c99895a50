package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/rumor-spread-service/pkg/experiment"
	"github.com/gilchrisn/rumor-spread-service/pkg/graph"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rumor",
		Short: "Rumor spread simulation under best-response dynamics",
		Long: `rumor simulates a rumor spreading through a social graph while
wise nodes spread the truth, both following synchronous best-response
dynamics with a common adoption threshold.

It compares wise-node seeding strategies over many random trials, plots
the results and can serve experiments over HTTP.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(
		newSimulateCmd(),
		newSweepCmd(),
		newServeCmd(),
		newStrategiesCmd(),
	)

	return rootCmd
}

// graphFlags are shared by every command that loads an edge list
func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().String("graph", "", "Edge-list file, one \"a b\" pair per line")
	cmd.Flags().Int("nodes", 0, "Number of nodes in the graph")
	cmd.Flags().Int64("seed", 0, "Base random seed (default: current time)")
	cmd.Flags().Bool("parallel", false, "Evaluate each round in parallel chunks")
	cmd.Flags().Int("workers", 0, "Number of worker goroutines (default: number of CPUs)")
}

var graphBindings = map[string]string{
	"graph":     "input.graph_file",
	"nodes":     "input.num_nodes",
	"seed":      "algorithm.random_seed",
	"parallel":  "performance.parallel",
	"workers":   "performance.num_workers",
	"log-level": "logging.level",
}

// loadConfig builds the experiment configuration from defaults, the
// optional config file and the flags set on the command line
func loadConfig(cmd *cobra.Command, bindings ...map[string]string) (*experiment.Config, error) {
	config := experiment.NewConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := config.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	for _, group := range bindings {
		for name, key := range group {
			if err := config.BindFlag(key, cmd.Flag(name)); err != nil {
				return nil, err
			}
		}
	}

	setupLogging(config.LogLevel())
	return config, nil
}

func setupLogging(levelName string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).Level(level)
}

func loadGraph(config *experiment.Config) (*graph.Graph, error) {
	if config.GraphFile() == "" {
		return nil, fmt.Errorf("no graph file given")
	}

	log.Info().
		Str("file", config.GraphFile()).
		Int("nodes", config.NumNodes()).
		Msg("Loading graph")

	g, stats, err := graph.LoadEdgeList(config.GraphFile(), config.NumNodes())
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("edges", stats.Edges).
		Int("duplicates", stats.Duplicates).
		Int("skipped_lines", stats.SkippedLines).
		Msg("Graph loaded")

	return g, nil
}
