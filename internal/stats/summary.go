package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of per-episode rewards in a run.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

func Summarize(rewards []float64) Summary {
	if len(rewards) == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), rewards...)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		sd := stat.StdDev(sorted, nil)
		if !math.IsNaN(sd) {
			s.StdDev = sd
		}
	}
	return s
}
