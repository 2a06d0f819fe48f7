package pivot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chochsentinel/sentinel/model"
)

func TestClassifyHighVariants(t *testing.T) {
	cases := []struct {
		variant                model.PivotVariant
		h1, h2, h3, l1, l2, l3 float64
	}{
		{model.PH1, 10, 20, 15, 5, 12, 8},
		{model.PH2, 10, 10, 8, 10, 6, 4},
		{model.PH3, 8, 12, 12, 4, 9, 15},
		{model.PH4, 8, 12, 12, 4, 9, 9},
		{model.PH5, 12, 12, 12, 4, 9, 9},
	}
	for _, c := range cases {
		got, ok := classifyHigh(c.h1, c.h2, c.h3, c.l1, c.l2, c.l3)
		require.True(t, ok, "expected %s to classify", c.variant)
		require.Equal(t, c.variant, got)
	}
}

func TestClassifyLowVariants(t *testing.T) {
	cases := []struct {
		variant                model.PivotVariant
		h1, h2, h3, l1, l2, l3 float64
	}{
		{model.PL1, 20, 9, 15, 12, 5, 9},
		{model.PL2, 8, 12, 15, 10, 10, 14},
		{model.PL3, 15, 10, 6, 14, 8, 8},
		{model.PL4, 15, 10, 10, 14, 8, 8},
		{model.PL5, 15, 10, 10, 8, 8, 8},
	}
	for _, c := range cases {
		got, ok := classifyLow(c.h1, c.h2, c.h3, c.l1, c.l2, c.l3)
		require.True(t, ok, "expected %s to classify", c.variant)
		require.Equal(t, c.variant, got)
	}
}

func candle(closeTime time.Time, high, low, volume float64) model.Candle {
	return model.Candle{CloseTime: closeTime, High: high, Low: low, Volume: volume}
}

func TestBasicPivotsDetectsLocalExtrema(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	hour := func(i int) time.Time { return base.Add(time.Duration(i) * time.Hour) }

	window := model.CandleWindow{
		candle(hour(0), 100, 90, 0),
		candle(hour(1), 110, 95, 0),
		candle(hour(2), 105, 85, 0),
		candle(hour(3), 95, 80, 0),
		candle(hour(4), 90, 90, 0),
	}

	e := NewEngine(1, 1)
	got := e.basicPivots(window)
	require.Equal(t, []candidate{
		{index: 1, isHigh: true},
		{index: 3, isHigh: false},
	}, got)
}

func TestRebuildHighPivotPH1(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	hour := func(i int) time.Time { return base.Add(time.Duration(i) * time.Hour) }

	window := model.CandleWindow{
		candle(hour(0), 100, 90, 0),
		candle(hour(1), 110, 95, 0),
		candle(hour(2), 105, 85, 0),
	}

	e := NewEngine(1, 1)
	history := model.NewPivotHistory(10)
	allow := NewAllowSet(map[string]bool{"PH1": true, "PL1": true})
	e.Rebuild(window, history, allow)

	require.Len(t, history.Pivots, 1)
	got := history.Pivots[0]
	require.True(t, got.IsHigh)
	require.Equal(t, 110.0, got.Price)
	require.Equal(t, model.PH1, got.Variant)
	require.True(t, got.BarIndex.Equal(hour(1)))
}

func TestRebuildLowPivotPL1(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	hour := func(i int) time.Time { return base.Add(time.Duration(i) * time.Hour) }

	window := model.CandleWindow{
		candle(hour(0), 110, 100, 0),
		candle(hour(1), 95, 85, 0),
		candle(hour(2), 115, 90, 0),
	}

	e := NewEngine(1, 1)
	history := model.NewPivotHistory(10)
	allow := NewAllowSet(map[string]bool{"PH1": true, "PL1": true})
	e.Rebuild(window, history, allow)

	require.Len(t, history.Pivots, 1)
	got := history.Pivots[0]
	require.False(t, got.IsHigh)
	require.Equal(t, 85.0, got.Price)
	require.Equal(t, model.PL1, got.Variant)
	require.True(t, got.BarIndex.Equal(hour(1)))
}

// gapFixture builds the shared seven-candle window for the synthetic
// insertion tests: two PH1 high pivots at index 1 and 5, separated by a
// three-candle gap at indices 2-4 whose lows vary between the two cases.
func gapFixture(base time.Time, gapLows [3]float64, gapVolumes [3]float64) model.CandleWindow {
	hour := func(i int) time.Time { return base.Add(time.Duration(i) * time.Hour) }
	return model.CandleWindow{
		candle(hour(0), 100, 90, 0),
		candle(hour(1), 110, 95, 1),
		candle(hour(2), 105, gapLows[0], gapVolumes[0]),
		candle(hour(3), 104, gapLows[1], gapVolumes[1]),
		candle(hour(4), 103, gapLows[2], gapVolumes[2]),
		candle(hour(5), 113, 96, 2),
		candle(hour(6), 104, 85, 0),
	}
}

func TestRebuildInsertsSyntheticPivotAcrossGap(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	window := gapFixture(base, [3]float64{85, 80, 75}, [3]float64{20, 30, 40})

	e := NewEngine(1, 1)
	history := model.NewPivotHistory(10)
	allow := NewAllowSet(map[string]bool{"PH1": true})
	e.Rebuild(window, history, allow)

	require.Len(t, history.Pivots, 3, "want high, synthetic low, high")

	require.True(t, history.Pivots[0].IsHigh)
	require.Equal(t, 110.0, history.Pivots[0].Price)
	require.Equal(t, model.PH1, history.Pivots[0].Variant)

	synthetic := history.Pivots[1]
	require.False(t, synthetic.IsHigh)
	require.Equal(t, model.Synthetic, synthetic.Variant)
	require.Equal(t, 75.0, synthetic.Price, "want the gap's lowest low")
	require.Equal(t, 40.0, synthetic.Volume)
	require.True(t, synthetic.BarIndex.Equal(base.Add(4*time.Hour)), "want the synthetic pivot at the gap's extreme bar")

	require.True(t, history.Pivots[2].IsHigh)
	require.Equal(t, 113.0, history.Pivots[2].Price)
	require.Equal(t, model.PH1, history.Pivots[2].Variant)
}

func TestRebuildSyntheticGapTieBreaksEarliestBar(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// Indices 2 and 3 tie on the gap's lowest low (70); index 4 is higher.
	window := gapFixture(base, [3]float64{70, 70, 75}, [3]float64{20, 30, 40})

	e := NewEngine(1, 1)
	history := model.NewPivotHistory(10)
	allow := NewAllowSet(map[string]bool{"PH1": true})
	e.Rebuild(window, history, allow)

	require.Len(t, history.Pivots, 3)

	synthetic := history.Pivots[1]
	require.Equal(t, 70.0, synthetic.Price)
	require.Equal(t, 20.0, synthetic.Volume, "want the earlier tied bar (index 2), not the later one (index 3)")
	require.True(t, synthetic.BarIndex.Equal(base.Add(2*time.Hour)), "want the earliest of the tied bars")
}
