// Package timeframe aligns and schedules candle periods for both native
// exchange intervals and synthesised ones built from 5-minute base bars.
package timeframe

import (
	"fmt"
	"time"

	"github.com/chochsentinel/sentinel/tools/errs"
)

// Timeframe is a candle interval, e.g. "5m", "15m", "25m".
type Timeframe string

// Minutes returns the interval length in minutes.
func (tf Timeframe) Minutes() (int, error) {
	switch tf {
	case "1m":
		return 1, nil
	case "3m":
		return 3, nil
	case "5m":
		return 5, nil
	case "10m":
		return 10, nil
	case "15m":
		return 15, nil
	case "20m":
		return 20, nil
	case "25m":
		return 25, nil
	case "30m":
		return 30, nil
	case "40m":
		return 40, nil
	case "45m":
		return 45, nil
	case "50m":
		return 50, nil
	case "1h":
		return 60, nil
	case "2h":
		return 120, nil
	case "4h":
		return 240, nil
	default:
		return 0, fmt.Errorf("%w: unrecognised timeframe %q", errs.ErrConfig, tf)
	}
}

// Interval returns the timeframe's length as a time.Duration.
func (tf Timeframe) Interval() (time.Duration, error) {
	m, err := tf.Minutes()
	if err != nil {
		return 0, err
	}
	return time.Duration(m) * time.Minute, nil
}

// native timeframes are directly returned by the exchange and never need
// aggregation; everything else is synthesised from 5m base candles.
var nativeTimeframes = map[Timeframe]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true,
}

// IsNative reports whether tf is fetched directly from the exchange rather
// than synthesised by the aggregator.
func (tf Timeframe) IsNative() bool {
	return nativeTimeframes[tf]
}

const baseInterval = 5 * time.Minute

// BaseBarsNeeded returns how many 5m base candles the aggregator needs to
// emit `limit` candles of tf.
func BaseBarsNeeded(tf Timeframe, limit int) (int, error) {
	m, err := tf.Minutes()
	if err != nil {
		return 0, err
	}
	if m%5 != 0 {
		return 0, fmt.Errorf("%w: %q is not a multiple of the 5m base interval", errs.ErrConfig, tf)
	}
	return limit * (m / 5), nil
}
