package storage

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"

	"github.com/chochsentinel/sentinel/model"
)

func newTestStore(t *testing.T) AlertStore {
	t.Helper()
	store, err := FromSQL(sqlite.Open(":memory:"))
	require.NoError(t, err)
	return store
}

func seedAlert(t *testing.T, store AlertStore, symbol, timeframe, signalType string, dir model.Direction, ts time.Time) {
	t.Helper()
	require.NoError(t, store.Save(&model.Alert{
		Symbol:          symbol,
		Timeframe:       timeframe,
		SignalType:      signalType,
		Direction:       dir,
		Price:           100,
		SignalTimestamp: ts,
	}))
}

func TestSaveAssignsIDAndCreatedAt(t *testing.T) {
	store := newTestStore(t)
	alert := &model.Alert{Symbol: "BTCUSDT", Timeframe: "1h", SignalTimestamp: time.Now()}
	require.NoError(t, store.Save(alert))
	require.NotEmpty(t, alert.ID, "expected Save to assign a non-empty ID")
	require.False(t, alert.CreatedAt.IsZero(), "expected Save to stamp CreatedAt")
}

func TestRecentOrdersNewestFirstAndExcludesArchived(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedAlert(t, store, "BTCUSDT", "1h", "choch", model.DirectionUp, base)
	seedAlert(t, store, "ETHUSDT", "1h", "choch", model.DirectionDown, base.Add(time.Hour))
	seedAlert(t, store, "SOLUSDT", "1h", "choch", model.DirectionUp, base.Add(2*time.Hour))

	recent, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "SOLUSDT", recent[0].Symbol, "newest first")

	require.NoError(t, store.Archive(recent[0].ID, "test archive"))
	recent, err = store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	for _, a := range recent {
		require.NotEqual(t, "SOLUSDT", a.Symbol, "archived alert still returned by Recent")
	}
}

func TestFilterComposesAllPredicates(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedAlert(t, store, "BTCUSDT", "1h", "choch", model.DirectionUp, base)
	seedAlert(t, store, "BTCUSDT", "4h", "choch", model.DirectionDown, base.Add(time.Hour))
	seedAlert(t, store, "ETHUSDT", "1h", "choch", model.DirectionUp, base.Add(2*time.Hour))

	matched, err := store.Filter(WithSymbol("BTCUSDT"), WithTimeframe("1h"))
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, model.DirectionUp, matched[0].Direction)
}

func TestStatsAggregatesBySymbolAndDirection(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedAlert(t, store, "BTCUSDT", "1h", "choch", model.DirectionUp, base)
	seedAlert(t, store, "BTCUSDT", "1h", "choch", model.DirectionDown, base.Add(time.Hour))
	seedAlert(t, store, "ETHUSDT", "1h", "choch", model.DirectionUp, base.Add(2*time.Hour))

	stats, err := store.Stats()
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 2, stats.BySymbol["BTCUSDT"])
	require.Equal(t, 2, stats.ByDirection[string(model.DirectionUp)])
}

func TestUniqueValuesDeduplicates(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedAlert(t, store, "BTCUSDT", "1h", "choch", model.DirectionUp, base)
	seedAlert(t, store, "BTCUSDT", "4h", "choch", model.DirectionDown, base.Add(time.Hour))

	values, err := store.UniqueValues("symbol")
	require.NoError(t, err)
	require.Equal(t, []string{"BTCUSDT"}, values)
}
