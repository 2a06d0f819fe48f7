package exchange

import (
	"context"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/timeframe"
)

// Port is the data surface the scan orchestrator consumes: the tradable
// symbol universe and closed OHLCV bars for any configured timeframe,
// native or synthesised.
type Port interface {
	// ListSymbols returns up to maxCount symbols quoted in quote with at
	// least min24hVolume in 24h quote volume, ordered by volume descending.
	// maxCount=0 means unlimited.
	ListSymbols(ctx context.Context, quote string, min24hVolume float64, maxCount int) ([]string, error)

	// FetchClosedOHLCV returns at most limit closed candles for symbol at
	// tf, oldest first, with the currently-forming candle always excluded.
	// A synthesised timeframe is served by aggregating limit*(m/5) base 5m
	// candles.
	FetchClosedOHLCV(ctx context.Context, symbol string, tf timeframe.Timeframe, limit int) ([]model.Candle, error)
}
