// Package exchange fetches closed OHLCV candles and the tradable symbol
// universe from a futures exchange, routing synthesised timeframes through
// the timeframe aggregator over base 5-minute data.
package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/chochsentinel/sentinel/tools/errs"
)

var (
	ErrInvalidQuantity   = fmt.Errorf("%w: invalid quantity", errs.ErrOrder)
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds or locked", errs.ErrOrder)
	ErrInvalidAsset      = fmt.Errorf("%w: invalid asset", errs.ErrOrder)
)

// OrderError carries the pair and quantity that failed validation alongside
// the underlying cause, following the teacher's own OrderError shape.
type OrderError struct {
	Err      error
	Pair     string
	Quantity float64
}

func (o *OrderError) Error() string {
	return fmt.Sprintf("order error: %v (pair=%s quantity=%f)", o.Err, o.Pair, o.Quantity)
}

func (o *OrderError) Unwrap() error { return o.Err }

// MetadataFetchers allows a caller to attach derived key/value pairs to every
// completed candle (e.g. an external indicator) without the exchange client
// knowing about that indicator's implementation.
type MetadataFetchers func(pair string, t time.Time) (string, float64)

// knownQuoteAssets lists quote currencies in descending length so the
// longest match wins when splitting "BTCUSDT" into ("BTC", "USDT").
var knownQuoteAssets = []string{"FDUSD", "USDT", "BUSD", "USDC", "TUSD", "USD", "BTC", "ETH", "BNB"}

// SplitAssetQuote splits a concatenated symbol such as "BTCUSDT" into its
// base and quote assets using the exchange's known quote currency suffixes.
// Unlike the teacher's pairs.json-backed lookup (which required a network
// round trip at startup to populate), this is a pure, dependency-free
// suffix match — the quote currency set is small and effectively static.
func SplitAssetQuote(pair string) (asset, quote string) {
	upper := strings.ToUpper(pair)
	for _, q := range knownQuoteAssets {
		if strings.HasSuffix(upper, q) && len(upper) > len(q) {
			return upper[:len(upper)-len(q)], q
		}
	}
	return upper, ""
}
