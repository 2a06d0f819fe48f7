package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chochsentinel/sentinel/model"
)

func TestAlertFromSignalCarriesSignalFields(t *testing.T) {
	sig := model.Signal{
		Symbol:    "BTCUSDT",
		Timeframe: "1h",
		Direction: model.DirectionUp,
		Group:     model.GroupG1,
		Price:     50000.5,
		BarIndex:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	alert := alertFromSignal(sig)
	require.Equal(t, "BTCUSDT", alert.Symbol)
	require.Equal(t, "1h", alert.Timeframe)
	require.Equal(t, "CHoCH Up", alert.SignalType)
	require.True(t, alert.IsFutures)
	assert.Contains(t, alert.ChartLink, "BTCUSDT")
}

func TestFormatAlertMessageIncludesChartLink(t *testing.T) {
	sig := model.Signal{Symbol: "ETHUSDT", Timeframe: "4h", Direction: model.DirectionDown, Group: model.GroupG2, Price: 3000}
	message := formatAlertMessage(sig, "https://example.com/chart")

	for _, want := range []string{"ETHUSDT", "4h", "G2", "https://example.com/chart"} {
		assert.Contains(t, message, want)
	}
}

func TestCapitalize(t *testing.T) {
	cases := map[string]string{"": "", "up": "Up", "down": "Down"}
	for in, want := range cases {
		assert.Equal(t, want, capitalize(in))
	}
}
