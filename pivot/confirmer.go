package pivot

import (
	"math"

	"github.com/chochsentinel/sentinel/model"
)

// Confirmer applies the three-candle CHoCH rule against a recognised
// pattern state and fires at most one Signal per pattern until the next
// rebuild clears the lock.
type Confirmer struct {
	recognizer *Recognizer
}

// NewConfirmer returns a ready-to-use Confirmer.
func NewConfirmer() *Confirmer {
	return &Confirmer{recognizer: NewRecognizer()}
}

// Confirm evaluates the three newest closed candles in window against
// state. It is total: every code path returns a well-defined (zero-value,
// false) on insufficient data, with no error.
func (cf *Confirmer) Confirm(state *model.PatternState, history *model.PivotHistory, window model.CandleWindow, symbol, timeframe string) (model.Signal, bool) {
	if state.ChochLocked {
		return model.Signal{}, false
	}
	if len(window) < 3 {
		return model.Signal{}, false
	}
	if !state.Recognised() {
		return model.Signal{}, false
	}

	n := len(window)
	prev2, prev1, curr := window[n-3], window[n-2], window[n-1]

	if !curr.CloseTime.After(state.P8BarIndex) {
		return model.Signal{}, false
	}

	// If the CHoCH bar coincides with the newest pivot and >=9 pivots
	// exist, re-evaluate the pattern at offset=1 and use that instead.
	effective := *state
	if last, ok := history.Last(); ok && last.BarIndex.Equal(prev1.CloseTime) && len(history.Pivots) >= 9 {
		if reRecognised, ok := cf.recognizer.Recognize(history, 1); ok {
			effective = reRecognised
		}
	}

	if sig, ok := cf.tryDirection(&effective, history, window, prev2, prev1, curr, symbol, timeframe, true); ok {
		cf.lock(state, prev1)
		return sig, true
	}
	if sig, ok := cf.tryDirection(&effective, history, window, prev2, prev1, curr, symbol, timeframe, false); ok {
		cf.lock(state, prev1)
		return sig, true
	}
	return model.Signal{}, false
}

func (cf *Confirmer) lock(state *model.PatternState, chochBar model.Candle) {
	state.ChochLocked = true
	state.LockedBarIndex = chochBar.CloseTime
	state.LockedPrice = chochBar.Close
}

// tryDirection checks an up-confirmation (wantUp=true, valid only against
// a recorded down-pattern) or down-confirmation (mirror).
func (cf *Confirmer) tryDirection(state *model.PatternState, history *model.PivotHistory, window model.CandleWindow, prev2, prev1, curr model.Candle, symbol, timeframe string, wantUp bool) (model.Signal, bool) {
	if wantUp && state.Direction != model.DirectionDown {
		return model.Signal{}, false
	}
	if !wantUp && state.Direction != model.DirectionUp {
		return model.Signal{}, false
	}

	if !chochBarPredicates(prev1, prev2, state, wantUp) {
		return model.Signal{}, false
	}
	if !basicConfirmation(curr, prev2, wantUp) {
		return model.Signal{}, false
	}
	if !groupCeilingFloor(curr, state, wantUp) {
		return model.Signal{}, false
	}
	if !volumeCluster(history, state, prev1, wantUp) {
		return model.Signal{}, false
	}
	if !p8BodyRestriction(window, curr, state, wantUp) {
		return model.Signal{}, false
	}

	dir := model.SignalShort
	sigType := model.SignalTypeChoch
	if wantUp {
		dir = model.SignalLong
	}

	// Entry1 is conservative (the CHoCH close itself); entry2 is aggressive
	// (pivot 6). TP targets pivot 5, SL sits at pivot 8 — grounded on
	// trading/signal_converter.py's create_signal_from_choch.
	return model.Signal{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Direction:   dir,
		Type:        sigType,
		Price:       prev1.Close,
		BarIndex:    prev1.CloseTime,
		Group:       state.Group,
		P2:          state.P2,
		P4:          state.P4,
		P5:          state.P5,
		P6:          state.P6,
		P7:          state.P7,
		P8:          state.P8,
		Entry1Price: prev1.Close,
		Entry2Price: state.P6,
		TPPrice:     state.P5,
		SLPrice:     state.P8,
		DetectedAt:  curr.CloseTime,
	}, true
}

func chochBarPredicates(prev1, prev2 model.Candle, state *model.PatternState, up bool) bool {
	if up {
		return prev1.Low > prev2.Low &&
			prev1.Close > prev2.High &&
			prev1.Close > state.P6 &&
			prev1.Close < state.P2 &&
			prev1.Close > state.P4
	}
	return prev1.High < prev2.High &&
		prev1.Close < prev2.Low &&
		prev1.Close < state.P6 &&
		prev1.Close > state.P2 &&
		prev1.Close < state.P4
}

func basicConfirmation(curr, prev2 model.Candle, up bool) bool {
	if up {
		return curr.Close > prev2.High
	}
	return curr.Close < prev2.Low
}

func groupCeilingFloor(curr model.Candle, state *model.PatternState, up bool) bool {
	if up {
		if state.Group == model.GroupG1 || state.Group == model.GroupG3 {
			return curr.Close <= state.P5
		}
		return curr.Close <= state.P7
	}
	if state.Group == model.GroupG1 || state.Group == model.GroupG3 {
		return curr.Close >= state.P5
	}
	return curr.Close >= state.P7
}

// volumeCluster finds the pivot bars for p4..p8 within history and applies
// the group-specific volume conditions, shifting indices by one when the
// CHoCH bar itself is the newest pivot and >=9 pivots exist.
func volumeCluster(history *model.PivotHistory, state *model.PatternState, chochBar model.Candle, up bool) bool {
	shift := 0
	if last, ok := history.Last(); ok && last.BarIndex.Equal(chochBar.CloseTime) && len(history.Pivots) >= 9 {
		shift = 1
	}

	idx := len(history.Pivots) - 8 + shift
	if idx < 0 || idx+7 >= len(history.Pivots) {
		return false
	}

	v4 := history.Pivots[idx+3].Volume
	v5 := history.Pivots[idx+4].Volume
	v6 := history.Pivots[idx+5].Volume
	v7 := history.Pivots[idx+6].Volume
	v8 := history.Pivots[idx+7].Volume
	vChoch := chochBar.Volume

	if state.Group == model.GroupG1 {
		cond1 := v8 == maxOf(v6, v7, v8) || v6 == maxOf(v6, v7, v8) || vChoch >= maxOf(v6, v7, v8)
		cond2 := v4 == maxOf(v4, v5, v6) || v6 == maxOf(v4, v5, v6)
		return cond1 && cond2
	}

	m := maxOf(v4, v5, maxOf(v6, v7, v8))
	return v4 == m || v8 == m || vChoch >= m
}

func maxOf(vals ...float64) float64 {
	m := math.Inf(-1)
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

func p8BodyRestriction(window model.CandleWindow, curr model.Candle, state *model.PatternState, up bool) bool {
	idx := indexOf(window, state.P8BarIndex)
	if idx < 0 {
		return false
	}
	p8Candle := window[idx]
	bodyHigh := math.Max(p8Candle.Open, p8Candle.Close)
	bodyLow := math.Min(p8Candle.Open, p8Candle.Close)

	if up {
		return curr.Close > p8Candle.High && curr.Low > bodyHigh
	}
	return curr.Close < p8Candle.Low && curr.High < bodyLow
}
