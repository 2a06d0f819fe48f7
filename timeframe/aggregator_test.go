package timeframe

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chochsentinel/sentinel/model"
)

func buildBaseCandles(start time.Time, count int, seed int64) []model.Candle {
	rng := rand.New(rand.NewSource(seed))
	out := make([]model.Candle, 0, count)
	t := start
	for i := 0; i < count; i++ {
		open := 100 + rng.Float64()*10
		close := 100 + rng.Float64()*10
		high := open + close
		low := open - close
		if low > open && low > close {
			low = open
		}
		c := model.Candle{
			Pair:      "BTCUSDT",
			Time:      t,
			CloseTime: t.Add(5 * time.Minute),
			Open:      open,
			Close:     close,
			High:      maxf(open, maxf(close, high)),
			Low:       minf(open, minf(close, low)),
			Volume:    rng.Float64() * 1000,
			Complete:  true,
		}
		out = append(out, c)
		t = t.Add(5 * time.Minute)
	}
	return out
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func TestAggregate25mAlignment(t *testing.T) {
	start := time.Date(2025, 10, 24, 0, 0, 0, 0, time.UTC)
	base := buildBaseCandles(start, 288*3, 1) // 3 days of 5m bars

	agg := NewAggregator()
	out, err := agg.Aggregate(base, "25m")
	require.NoError(t, err)
	require.NotEmpty(t, out, "expected non-empty aggregation")

	r := time.Date(2025, 10, 24, 17, 5, 0, 0, time.UTC)
	found := false
	for _, c := range out {
		if c.CloseTime.Equal(time.Date(2025, 10, 24, 17, 30, 0, 0, time.UTC)) {
			found = true
		}
		diff := c.CloseTime.Sub(r)
		require.Zero(t, diff%(25*time.Minute), "candle close_time %v not aligned to R_25m", c.CloseTime)
	}
	require.True(t, found, "expected a candle closing at 2025-10-24T17:30 in the output")
}

func TestAggregateCompleteness(t *testing.T) {
	start := time.Date(2025, 10, 24, 0, 0, 0, 0, time.UTC)
	base := buildBaseCandles(start, 100, 2)

	agg := NewAggregator()
	out, err := agg.Aggregate(base, "20m")
	require.NoError(t, err)

	// Every emitted 20m candle must aggregate exactly 4 base candles;
	// recomputing volume sums over the matching window checks this
	// indirectly by reconstructing period membership.
	r, _ := Reference("20m")
	for _, c := range out {
		periodStart := c.CloseTime.Add(-20 * time.Minute)
		require.Zero(t, periodStart.Sub(r)%(20*time.Minute), "period start %v not aligned", periodStart)

		members, volume := 0, 0.0
		for _, b := range base {
			if PeriodStart(b.CloseTime, r, 20*time.Minute).Equal(periodStart) {
				members++
				volume += b.Volume
			}
		}
		require.Equal(t, 4, members, "period %v should aggregate exactly 4 base candles", periodStart)
		require.InDelta(t, volume, c.Volume, 1e-9)
	}
}

func TestAggregateOHLCValidity(t *testing.T) {
	start := time.Date(2025, 10, 24, 0, 0, 0, 0, time.UTC)
	base := buildBaseCandles(start, 288, 3)

	agg := NewAggregator()
	out, err := agg.Aggregate(base, "40m")
	require.NoError(t, err)
	for _, c := range out {
		require.NoError(t, c.Validate(), "invalid candle %+v", c)
	}
}

func TestAggregateInvalidTimeframe(t *testing.T) {
	agg := NewAggregator()
	_, err := agg.Aggregate(nil, "7m")
	require.Error(t, err, "expected error for unrecognised timeframe")
}
