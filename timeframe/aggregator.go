package timeframe

import (
	"fmt"
	"sort"
	"time"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/tools/errs"
)

// Aggregator synthesises candles for non-native timeframes from a sequence
// of 5-minute base candles, aligned to a fixed reference instant so that
// grouping never drifts across day boundaries.
type Aggregator struct{}

// NewAggregator returns a ready-to-use Aggregator. It carries no state: all
// alignment is a pure function of the base sequence and the target
// timeframe's reference instant.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate groups base (5m) candles into tf-aligned periods. Only groups
// with exactly m/5 constituent base candles are emitted; partial trailing
// or leading periods are dropped. The base slice need not be sorted.
func (a *Aggregator) Aggregate(base []model.Candle, tf Timeframe) ([]model.Candle, error) {
	if tf.IsNative() {
		return base, nil
	}

	m, err := tf.Minutes()
	if err != nil {
		return nil, err
	}
	if m%5 != 0 {
		return nil, fmt.Errorf("%w: timeframe %q is not a multiple of 5 minutes", errs.ErrConfig, tf)
	}
	barsPerPeriod := m / 5

	r, err := Reference(tf)
	if err != nil {
		return nil, err
	}
	interval, err := tf.Interval()
	if err != nil {
		return nil, err
	}

	groups := make(map[int64][]model.Candle)
	for _, c := range base {
		periodStart := PeriodStart(c.CloseTime, r, interval)
		groups[periodStart.Unix()] = append(groups[periodStart.Unix()], c)
	}

	starts := make([]int64, 0, len(groups))
	for start := range groups {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]model.Candle, 0, len(starts))
	for _, start := range starts {
		members := groups[start]
		if len(members) != barsPerPeriod {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].CloseTime.Before(members[j].CloseTime) })

		periodStart := time.Unix(start, 0).UTC()
		candle := model.Candle{
			Pair:      members[0].Pair,
			Time:      periodStart,
			CloseTime: periodStart.Add(interval),
			Open:      members[0].Open,
			Close:     members[len(members)-1].Close,
			Complete:  true,
		}
		candle.High = members[0].High
		candle.Low = members[0].Low
		for _, mem := range members {
			if mem.High > candle.High {
				candle.High = mem.High
			}
			if mem.Low < candle.Low {
				candle.Low = mem.Low
			}
			candle.Volume += mem.Volume
		}
		candle.UpdatedAt = members[len(members)-1].UpdatedAt

		if err := candle.Validate(); err != nil {
			return nil, err
		}
		out = append(out, candle)
	}

	return out, nil
}
