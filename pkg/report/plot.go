package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// StrategyLabels are the legend labels of the built-in strategies
var StrategyLabels = map[string]string{
	"none":        "No Wise Nodes",
	"random":      "Random Wise Nodes",
	"high_degree": "High-Degree Wise Nodes",
	"pagerank":    "PageRank Wise Nodes",
}

var strategyColors = map[string]color.Color{
	"none":        color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	"random":      color.RGBA{G: 0x80, A: 0xff},
	"high_degree": color.RGBA{R: 0xff, A: 0xff},
	"pagerank":    color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// errorPoints satisfies both plotter.XYer and plotter.YErrorer
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// PlotFilename is the image name used for spreader count k
func PlotFilename(k int) string {
	return fmt.Sprintf("rumor_spread_k%d.png", k)
}

// RenderErrorBars draws one curve per strategy, mean infected against w with
// standard-deviation error bars, and saves it under dir. It returns the path
// of the written image.
func RenderErrorBars(dir string, k int, series Series) (string, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("no series to plot for k=%d", k)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plot directory: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Impact of Wise Node Selection Strategies on Rumor Spread (k=%d)", k)
	p.X.Label.Text = "Number of Wise Nodes (w)"
	p.Y.Label.Text = "Average Number of Infected Nodes"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	strategies := make([]string, 0, len(series))
	for strategy := range series {
		strategies = append(strategies, strategy)
	}
	sort.Strings(strategies)

	ticks := make(map[int]struct{})
	for i, strategy := range strategies {
		curve := series[strategy]
		if len(curve) == 0 {
			continue
		}

		data := errorPoints{
			XYs:     make(plotter.XYs, len(curve)),
			YErrors: make(plotter.YErrors, len(curve)),
		}
		for j, point := range curve {
			data.XYs[j].X = float64(point.Wise)
			data.XYs[j].Y = point.Summary.Mean
			data.YErrors[j].Low = point.Summary.StdDev
			data.YErrors[j].High = point.Summary.StdDev
			ticks[point.Wise] = struct{}{}
		}

		c, exists := strategyColors[strategy]
		if !exists {
			c = plotutil.Color(i)
		}

		line, points, err := plotter.NewLinePoints(data.XYs)
		if err != nil {
			return "", fmt.Errorf("failed to build curve for %s: %w", strategy, err)
		}
		line.Color = c
		points.Color = c
		points.Shape = draw.CircleGlyph{}

		bars, err := plotter.NewYErrorBars(data)
		if err != nil {
			return "", fmt.Errorf("failed to build error bars for %s: %w", strategy, err)
		}
		bars.Color = c
		bars.CapWidth = vg.Points(10)

		p.Add(line, points, bars)

		label, exists := StrategyLabels[strategy]
		if !exists {
			label = strategy
		}
		p.Legend.Add(label, line, points)
	}

	p.X.Tick.Marker = wiseTicks(ticks)

	path := filepath.Join(dir, PlotFilename(k))
	if err := p.Save(12*vg.Inch, 8*vg.Inch, path); err != nil {
		return "", fmt.Errorf("failed to save plot: %w", err)
	}
	return path, nil
}

// RenderAll writes one image per spreader count and returns the paths in
// ascending k order
func RenderAll(dir string, grouped map[int]Series) ([]string, error) {
	paths := make([]string, 0, len(grouped))
	for _, k := range SortedKeys(grouped) {
		path, err := RenderErrorBars(dir, k, grouped[k])
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// wiseTicks labels exactly the w values that were simulated
func wiseTicks(values map[int]struct{}) plot.ConstantTicks {
	sorted := make([]int, 0, len(values))
	for v := range values {
		sorted = append(sorted, v)
	}
	sort.Ints(sorted)

	ticks := make(plot.ConstantTicks, len(sorted))
	for i, v := range sorted {
		ticks[i] = plot.Tick{Value: float64(v), Label: strconv.Itoa(v)}
	}
	return ticks
}
