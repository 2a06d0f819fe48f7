package metrics

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of values, used by the backtest report
// to summarize the gap in hours between consecutive confirmed signals.
func Mean(values []float64) float64 {
	return stat.Mean(values, nil)
}

// BootstrapInterval holds a resampled confidence interval: Mean and StdDev
// of the resampled statistic, bounded by Lower/Upper at the requested
// confidence level.
type BootstrapInterval struct {
	Lower  float64
	Upper  float64
	StdDev float64
	Mean   float64
}

// Bootstrap estimates a confidence interval for measure(values) by
// resampling values with replacement sampleSize times. Used by the
// backtest report to bound how reliable the observed signal cadence is
// when only a handful of signals fired over the replayed window.
func Bootstrap(values []float64, measure func([]float64) float64, sampleSize int, confidence float64) BootstrapInterval {
	data := make([]float64, 0, sampleSize)
	for i := 0; i < sampleSize; i++ {
		sample := make([]float64, len(values))
		for j := range sample {
			sample[j] = lo.Sample(values)
		}
		data = append(data, measure(sample))
	}

	tail := 1 - confidence
	sort.Float64s(data)
	mean, stdDev := stat.MeanStdDev(data, nil)
	upper := stat.Quantile(1-tail/2, stat.LinInterp, data, nil)
	lower := stat.Quantile(tail/2, stat.LinInterp, data, nil)

	return BootstrapInterval{Lower: lower, Upper: upper, StdDev: stdDev, Mean: mean}
}
