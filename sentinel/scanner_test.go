package sentinel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/signalbus"
	"github.com/chochsentinel/sentinel/timeframe"
	"github.com/chochsentinel/sentinel/tools/errs"
)

// fakePort is a minimal exchange.Port double: ListSymbols returns a fixed
// list, FetchClosedOHLCV replays a canned candle slice (optionally
// failing the first N calls with ErrTransientIO).
type fakePort struct {
	symbols      []string
	candles      []model.Candle
	failuresLeft int
	permanentErr error
	fetchCalls   int
	listCalled   bool
}

func (f *fakePort) ListSymbols(ctx context.Context, quote string, min24hVolume float64, maxCount int) ([]string, error) {
	f.listCalled = true
	return f.symbols, nil
}

func (f *fakePort) FetchClosedOHLCV(ctx context.Context, symbol string, tf timeframe.Timeframe, limit int) ([]model.Candle, error) {
	f.fetchCalls++
	if f.permanentErr != nil {
		return nil, f.permanentErr
	}
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errs.ErrTransientIO
	}
	return f.candles, nil
}

func baseSettings() model.Settings {
	return model.Settings{
		Timeframes:      []string{"1h"},
		Symbols:         []string{"BTCUSDT", "ETHUSDT"},
		QuoteCurrency:   "USDT",
		HistoricalLimit: 50,
		Pivot: model.PivotSettings{
			Left: 1, Right: 1, KeepPivots: 100,
			Allow: map[string]bool{"PH1": true, "PH2": true, "PH3": true, "PH4": true, "PH5": true,
				"PL1": true, "PL2": true, "PL3": true, "PL4": true, "PL5": true},
		},
	}
}

func TestSymbolUniverseUsesConfiguredListWhenNotFetchingAll(t *testing.T) {
	port := &fakePort{symbols: []string{"SOLUSDT"}}
	s := NewScanner(baseSettings(), port, signalbus.New[model.Signal](4))

	symbols, err := s.symbolUniverse(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
	require.False(t, port.listCalled, "expected ListSymbols not to be called when FETCH_ALL_COINS is off")
}

func TestSymbolUniverseDelegatesWhenFetchingAll(t *testing.T) {
	settings := baseSettings()
	settings.FetchAllSymbols = true
	port := &fakePort{symbols: []string{"SOLUSDT", "BNBUSDT"}}
	s := NewScanner(settings, port, signalbus.New[model.Signal](4))

	symbols, err := s.symbolUniverse(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"SOLUSDT", "BNBUSDT"}, symbols)
	require.True(t, port.listCalled, "expected ListSymbols to be called when FETCH_ALL_COINS is on")
}

func TestFetchWithRetryRecoversFromTransientFailures(t *testing.T) {
	port := &fakePort{failuresLeft: 2, candles: []model.Candle{{Close: 1}}}
	s := NewScanner(baseSettings(), port, signalbus.New[model.Signal](4))

	candles, err := s.fetchWithRetry(context.Background(), "BTCUSDT", timeframe.Timeframe("1h"))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	require.Equal(t, 3, port.fetchCalls, "want 2 failures + 1 success")
}

func TestFetchWithRetryGivesUpOnPermanentError(t *testing.T) {
	permanent := errors.New("bad symbol")
	port := &fakePort{permanentErr: permanent}
	s := NewScanner(baseSettings(), port, signalbus.New[model.Signal](4))

	_, err := s.fetchWithRetry(context.Background(), "BTCUSDT", timeframe.Timeframe("1h"))
	require.ErrorIs(t, err, permanent, "want permanent error surfaced without retry")
	require.Equal(t, 1, port.fetchCalls, "want no retry on non-transient error")
}

func TestScanPairTracksStateEvenWithoutConfirmedSignal(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, 0, 5)
	for i := 0; i < 5; i++ {
		candles = append(candles, model.Candle{
			Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10,
			Time:      now.Add(time.Duration(i) * time.Hour),
			CloseTime: now.Add(time.Duration(i+1) * time.Hour),
		})
	}
	port := &fakePort{candles: candles}
	bus := signalbus.New[model.Signal](4)
	s := NewScanner(baseSettings(), port, bus)

	var published []model.Signal
	bus.Subscribe(func(sig model.Signal) error {
		published = append(published, sig)
		return nil
	})

	require.NoError(t, s.scanPair(context.Background(), "BTCUSDT", timeframe.Timeframe("1h")))
	require.Equal(t, 1, s.TrackedPairs())
	require.Empty(t, published, "want no signal from flat, too-short candle data")
}

// chochCandleFixture returns a 13-candle window that, at Left=1/Right=1,
// rebuilds into the eight-pivot G1 uptrend structure from
// TestRecognizeG1Uptrend (prices 95,102,98,106,103,110,105,115) followed by
// a three-candle CHoCH breakout that the Confirmer accepts as a short
// signal. Candles 0 and 9 only pad the pivot boundaries; the window is
// never mutated between scans, so repeated rebuilds must reproduce the
// same pivot history and refire the same signal.
func chochCandleFixture(base time.Time) []model.Candle {
	type ohlcv struct{ open, closePrice, low, high, volume float64 }
	bars := []ohlcv{
		{99.5, 99.5, 99, 100, 0},
		{96, 96, 95, 97, 0},
		{100.5, 100.5, 99, 102, 0},
		{99, 99, 98, 100, 0},
		{105, 105, 104, 106, 10},
		{104, 104, 103, 105, 5},
		{108.5, 108.5, 107, 110, 20},
		{106.5, 106.5, 105, 108, 8},
		{110, 112, 109, 115, 20},
		{111.5, 111.5, 111, 112, 0},
		{108, 108.5, 107, 109, 0},
		{104, 104, 100, 106, 1},
		{107, 105, 90, 108, 0},
	}
	candles := make([]model.Candle, 0, len(bars))
	for i, b := range bars {
		ct := base.Add(time.Duration(i) * time.Hour)
		candles = append(candles, model.Candle{
			Pair: "BTCUSDT", Time: ct.Add(-time.Hour), CloseTime: ct,
			Open: b.open, Close: b.closePrice, Low: b.low, High: b.high, Volume: b.volume, Complete: true,
		})
	}
	return candles
}

func TestScanPairFiresSignalAgainAfterRebuildOverUnchangedWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	port := &fakePort{candles: chochCandleFixture(base)}
	bus := signalbus.New[model.Signal](4)
	s := NewScanner(baseSettings(), port, bus)

	var published []model.Signal
	bus.Subscribe(func(sig model.Signal) error {
		published = append(published, sig)
		return nil
	})

	require.NoError(t, s.scanPair(context.Background(), "BTCUSDT", timeframe.Timeframe("1h")))
	require.Len(t, published, 1, "want a signal on the first rebuild")
	require.Equal(t, model.SignalShort, published[0].Direction)
	require.Equal(t, model.GroupG1, published[0].Group)

	// Same candle window, simulating the next tick's rebuild over
	// unchanged data: the pattern must fire exactly one signal again,
	// not be suppressed by a lock carried over from the first rebuild.
	require.NoError(t, s.scanPair(context.Background(), "BTCUSDT", timeframe.Timeframe("1h")))
	require.Len(t, published, 2, "want the pattern to refire on the next rebuild over the same window")
	require.Equal(t, model.SignalShort, published[1].Direction)
	require.Equal(t, model.GroupG1, published[1].Group)
}

func TestTickSkipsScanWhenNoTimeframeIsDue(t *testing.T) {
	settings := baseSettings()
	port := &fakePort{candles: []model.Candle{{Close: 1}}}
	s := NewScanner(settings, port, signalbus.New[model.Signal](4))

	// MarkScanned immediately after construction means the 1h timeframe
	// will not be due again for this tick.
	require.NoError(t, s.scheduler.MarkScanned(timeframe.Timeframe("1h"), time.Now().UTC()))
	require.NoError(t, s.tick(context.Background()))
	require.Equal(t, 0, port.fetchCalls, "want no fetch when no timeframe is due")
}
