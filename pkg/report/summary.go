package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/rumor-spread-service/pkg/experiment"
)

// Summary reduces the outcomes of one configuration
type Summary struct {
	Trials int     `json:"trials"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes mean and population standard deviation of outcomes
func Summarize(outcomes []int) Summary {
	if len(outcomes) == 0 {
		return Summary{}
	}

	values := make([]float64, len(outcomes))
	for i, v := range outcomes {
		values[i] = float64(v)
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Trials: len(outcomes),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}

// SeriesPoint is one x position of a strategy curve
type SeriesPoint struct {
	Wise    int     `json:"wise"`
	Summary Summary `json:"summary"`
}

// Series maps a strategy name to its points sorted by w
type Series map[string][]SeriesPoint

// GroupByK splits sweep points into one Series per spreader count
func GroupByK(points []experiment.Point) map[int]Series {
	grouped := make(map[int]Series)
	for _, point := range points {
		cfg := point.Configuration
		series, exists := grouped[cfg.Spreaders]
		if !exists {
			series = make(Series)
			grouped[cfg.Spreaders] = series
		}
		series[cfg.Strategy] = append(series[cfg.Strategy], SeriesPoint{
			Wise:    cfg.Wise,
			Summary: Summarize(point.Outcomes),
		})
	}

	for _, series := range grouped {
		for _, curve := range series {
			sort.SliceStable(curve, func(i, j int) bool { return curve[i].Wise < curve[j].Wise })
		}
	}
	return grouped
}

// SortedKeys returns the spreader counts of a grouping in ascending order
func SortedKeys(grouped map[int]Series) []int {
	keys := make([]int, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// PointResult is the serialized form of one sweep point
type PointResult struct {
	experiment.Configuration
	Summary  Summary `json:"summary"`
	Outcomes []int   `json:"outcomes"`
}

// Results builds serializable results in sweep order
func Results(points []experiment.Point) []PointResult {
	results := make([]PointResult, len(points))
	for i, point := range points {
		results[i] = PointResult{
			Configuration: point.Configuration,
			Summary:       Summarize(point.Outcomes),
			Outcomes:      point.Outcomes,
		}
	}
	return results
}

// WriteJSON writes the results of a sweep as indented JSON
func WriteJSON(w io.Writer, points []experiment.Point) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(Results(points)); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}
