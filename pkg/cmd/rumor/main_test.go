package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/rumor-spread-service/pkg/config"
	"github.com/gilchrisn/rumor-spread-service/pkg/experiment"
	"github.com/gilchrisn/rumor-spread-service/pkg/report"
)

// writeStar writes a star with center 0 and leaves 1..5, plus isolated node 6
func writeStar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "star.txt")
	content := "# star\n0 1\n0 2\n0 3\n0 4\n0 5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStrategiesCmd(t *testing.T) {
	out, err := execute(t, "strategies")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "high_degree"))
	assert.True(t, strings.HasPrefix(lines[3], "random"))
}

func TestSimulateCmd(t *testing.T) {
	graphFile := writeStar(t)

	out, err := execute(t, "simulate",
		"--graph", graphFile, "--nodes", "7",
		"-q", "0.5", "-k", "7", "--trials", "3", "--seed", "1", "--json")
	require.NoError(t, err)

	var result report.PointResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 7, result.Spreaders)
	assert.Equal(t, 0.5, result.Threshold)
	assert.Equal(t, []int{7, 7, 7}, result.Outcomes)
	assert.Equal(t, 7.0, result.Summary.Mean)
	assert.Equal(t, 0.0, result.Summary.StdDev)
}

func TestSimulateCmdText(t *testing.T) {
	graphFile := writeStar(t)

	out, err := execute(t, "simulate",
		"--graph", graphFile, "--nodes", "7", "-k", "1", "--trials", "2", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration: q=0.1 k=1 w=0 strategy=none trials=2")
	assert.Contains(t, out, "Average infected:")
}

func TestSimulateCmdDetails(t *testing.T) {
	graphFile := writeStar(t)
	args := []string{"simulate",
		"--graph", graphFile, "--nodes", "7",
		"-q", "0.5", "-k", "7", "--trials", "2", "--seed", "1", "--details"}

	out, err := execute(t, append(args, "--json")...)
	require.NoError(t, err)

	var trials []experiment.TrialResult
	require.NoError(t, json.Unmarshal([]byte(out), &trials))
	require.Len(t, trials, 2)
	for i, trial := range trials {
		assert.Equal(t, i, trial.Trial)
		assert.Equal(t, 7, trial.Infected)
		assert.Equal(t, 0, trial.Rounds)
		assert.Len(t, trial.Seeds.Spreaders, 7)
	}

	out, err = execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Trial 1: 7 infected, 0 wise, 0 rounds")
	assert.Contains(t, out, "Average infected: 7.00, Std Dev: 0.00")
}

func TestSimulateCmdErrors(t *testing.T) {
	graphFile := writeStar(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing graph", []string{"simulate", "--nodes", "7"}},
		{"node out of range", []string{"simulate", "--graph", graphFile, "--nodes", "3"}},
		{"too many spreaders", []string{"simulate", "--graph", graphFile, "--nodes", "7", "-k", "8"}},
		{"unknown strategy", []string{"simulate", "--graph", graphFile, "--nodes", "7", "--strategy", "closeness"}},
		{"missing config", []string{"simulate", "--config", filepath.Join(t.TempDir(), "none.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestSweepCmd(t *testing.T) {
	graphFile := writeStar(t)
	dir := t.TempDir()
	resultsFile := filepath.Join(dir, "results.json")

	_, err := execute(t, "sweep",
		"--graph", graphFile, "--nodes", "7", "--seed", "5", "--trials", "2",
		"--spreader-values", "1,2", "--wise-values", "0,1",
		"--strategies", "random,high_degree",
		"--plot-dir", dir, "--results", resultsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(resultsFile)
	require.NoError(t, err)
	var results []report.PointResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 8)
	assert.Equal(t, 1, results[0].Spreaders)
	assert.Equal(t, "random", results[0].Strategy)
	assert.Equal(t, 2, results[7].Spreaders)

	for _, k := range []int{1, 2} {
		_, err := os.Stat(filepath.Join(dir, report.PlotFilename(k)))
		assert.NoError(t, err)
	}
}

func TestSweepCmdParallelPointsNestedPlotDir(t *testing.T) {
	graphFile := writeStar(t)
	plotDir := filepath.Join(t.TempDir(), "plots", "star")

	_, err := execute(t, "sweep",
		"--graph", graphFile, "--nodes", "7", "--seed", "5", "--trials", "2",
		"--spreader-values", "2", "--wise-values", "0,1",
		"--strategies", "high_degree", "--parallel-points",
		"--plot-dir", plotDir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(plotDir, report.PlotFilename(2)))
	assert.NoError(t, err)
}

func TestSweepCmdConfigFile(t *testing.T) {
	graphFile := writeStar(t)
	dir := t.TempDir()
	configFile := filepath.Join(dir, "sweep.yaml")
	resultsFile := filepath.Join(dir, "results.json")

	content := "input:\n  graph_file: " + graphFile + "\n  num_nodes: 7\n" +
		"sweep:\n  spreader_values: [3]\n  wise_values: [0, 2]\n  strategies: [pagerank]\n" +
		"experiment:\n  trials: 2\n"
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	_, err := execute(t, "sweep", "--config", configFile, "--plot-dir", "", "--results", resultsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(resultsFile)
	require.NoError(t, err)
	var results []report.PointResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 2)
	assert.Equal(t, "pagerank", results[0].Strategy)
	assert.Equal(t, 2, results[1].Wise)
	assert.Len(t, results[1].Outcomes, 2)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, serve(ctx, cfg))
}
