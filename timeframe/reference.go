package timeframe

import (
	"fmt"
	"time"

	"github.com/chochsentinel/sentinel/tools/errs"
)

// referenceInstants anchors aggregation and scheduling for every synthesised
// timeframe to a fixed UTC instant known to coincide with an exchange candle
// opening. Anchoring to midnight instead would silently drift whenever the
// interval does not evenly divide a day — the 25m case is the load-bearing
// example: 1440 minutes per day is not divisible by 25.
var referenceInstants = map[Timeframe]time.Time{
	"10m": time.Date(2025, 10, 24, 17, 10, 0, 0, time.UTC),
	"20m": time.Date(2025, 10, 24, 17, 20, 0, 0, time.UTC),
	"25m": time.Date(2025, 10, 24, 17, 5, 0, 0, time.UTC),
	"40m": time.Date(2025, 10, 24, 16, 40, 0, 0, time.UTC),
	"45m": time.Date(2025, 10, 24, 17, 15, 0, 0, time.UTC),
	"50m": time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC),
}

// Reference returns the fixed anchor instant for a synthesised timeframe.
func Reference(tf Timeframe) (time.Time, error) {
	if tf.IsNative() {
		// Native timeframes align to the epoch itself: every native
		// interval evenly divides a day, so the epoch is a valid anchor.
		return time.Unix(0, 0).UTC(), nil
	}
	r, ok := referenceInstants[tf]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: no reference instant configured for %q", errs.ErrConfig, tf)
	}
	return r, nil
}

// PeriodStart returns the start of the interval-aligned period containing
// t, anchored at r with interval length.
func PeriodStart(t, r time.Time, interval time.Duration) time.Time {
	elapsed := t.Sub(r)
	periodIndex := int64(elapsed / interval)
	if elapsed < 0 && elapsed%interval != 0 {
		periodIndex--
	}
	return r.Add(time.Duration(periodIndex) * interval)
}
