package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{"TIMEFRAMES": "1h,4h"})

	settings, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"1h", "4h"}, settings.Timeframes)
	require.Equal(t, 5, settings.Pivot.Left)
	require.Equal(t, 5, settings.Pivot.Right)
	require.True(t, settings.Trading.Demo, "expected DEMO_TRADING to default true")
	require.False(t, settings.Trading.Enabled, "expected ENABLE_TRADING to default false")
	require.Equal(t, "USDT", settings.QuoteCurrency)
	for _, v := range phVariants {
		require.True(t, settings.Pivot.Allow[v], "Pivot.Allow[%s] should default true", v)
	}
}

func TestLoadMissingTimeframesErrors(t *testing.T) {
	_, err := Load()
	require.Error(t, err, "expected Load to error without TIMEFRAMES set")
}

func TestLoadRejectsInvalidPivotWindow(t *testing.T) {
	setEnv(t, map[string]string{"TIMEFRAMES": "1h", "PIVOT_LEFT": "0"})
	_, err := Load()
	require.Error(t, err, "expected Load to reject PIVOT_LEFT < 1")
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	setEnv(t, map[string]string{"TIMEFRAMES": "1h", "MAX_PAIRS": "not-a-number"})
	_, err := Load()
	require.Error(t, err, "expected Load to reject a non-integer MAX_PAIRS")
}

func TestLoadParsesSymbolsAndAllowList(t *testing.T) {
	setEnv(t, map[string]string{
		"TIMEFRAMES": "1h",
		"SYMBOLS":    " BTCUSDT, ETHUSDT ,",
		"ALLOW_PH1":  "false",
	})
	settings, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, settings.Symbols)
	require.False(t, settings.Pivot.Allow["PH1"], "expected ALLOW_PH1=false to disable PH1")
}

func TestLoadUpdateIntervalAcceptsBareSecondsAndDurationString(t *testing.T) {
	setEnv(t, map[string]string{"TIMEFRAMES": "1h", "UPDATE_INTERVAL": "30"})
	settings, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30, settings.UpdateInterval)

	t.Setenv("UPDATE_INTERVAL", "1m")
	settings, err = Load()
	require.NoError(t, err)
	require.Equal(t, 60, settings.UpdateInterval)
}
