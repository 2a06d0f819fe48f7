package backtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chochsentinel/sentinel/model"
)

func flatCandles(n int, start time.Time) []model.Candle {
	candles := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, model.Candle{
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 10,
			Time:      start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		})
	}
	return candles
}

func fullAllow() map[string]bool {
	return map[string]bool{
		"PH1": true, "PH2": true, "PH3": true, "PH4": true, "PH5": true,
		"PL1": true, "PL2": true, "PL3": true, "PL4": true, "PL5": true,
	}
}

func TestRunOnFlatCandlesProducesNoSignals(t *testing.T) {
	settings := model.Settings{
		HistoricalLimit: 50,
		Pivot:           model.PivotSettings{Left: 1, Right: 1, KeepPivots: 100, Allow: fullAllow()},
	}
	runner := NewRunner(settings)
	candles := flatCandles(30, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	report := runner.Run(candles, "BTCUSDT", "1h")
	assert.Empty(t, report.Signals, "perfectly flat candles should produce no signals")
}

func TestRunHandlesTooFewCandles(t *testing.T) {
	settings := model.Settings{
		HistoricalLimit: 50,
		Pivot:           model.PivotSettings{Left: 1, Right: 1, KeepPivots: 100, Allow: fullAllow()},
	}
	runner := NewRunner(settings)

	report := runner.Run(flatCandles(2, time.Now()), "BTCUSDT", "1h")
	assert.Empty(t, report.Signals, "fewer than 3 candles should produce no signals")
}

func TestReportPrintRendersTableForZeroSignals(t *testing.T) {
	rep := Report{Symbol: "BTCUSDT", Timeframe: "1h"}
	var buf bytes.Buffer
	rep.Print(&buf)

	assert.Contains(t, buf.String(), "0 signals")
}
