// Package pivot maintains the per-(symbol, timeframe) pivot history and
// recognises/confirms the eight-pivot CHoCH pattern over it.
package pivot

import (
	"time"

	"github.com/StudioSol/set"

	"github.com/chochsentinel/sentinel/model"
)

// AllowSet is the configured set of accepted pivot variant tags.
type AllowSet struct {
	allowed *set.LinkedHashSetString
}

// NewAllowSet builds an AllowSet from the PH1..PH5/PL1..PL5 allow-list.
func NewAllowSet(allow map[string]bool) AllowSet {
	s := set.NewLinkedHashSetString()
	for variant, ok := range allow {
		if ok {
			s.Add(variant)
		}
	}
	return AllowSet{allowed: s}
}

func (a AllowSet) accepts(v model.PivotVariant) bool {
	if a.allowed == nil {
		return false
	}
	return a.allowed.Contains(string(v))
}

// variantTest classifies a pivot candidate's (i-1, i, i+1) neighbourhood
// into a variant tag, data-table style: the five predicates per direction
// are evaluated in order and the first match wins.
type variantTest struct {
	variant model.PivotVariant
	test    func(h1, h2, h3, l1, l2, l3 float64) bool
}

var highVariants = [5]variantTest{
	{model.PH1, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return h2 > h1 && h2 > h3 && l2 > l1 && l2 > l3
	}},
	{model.PH2, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return h2 >= h1 && h2 > h3 && l2 > l3 && l2 < l1
	}},
	{model.PH3, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return h2 > h1 && h2 >= h3 && l2 < l3 && l2 > l1
	}},
	{model.PH4, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return h2 >= h3 && h2 > h1 && l2 <= l3 && l2 > l1
	}},
	{model.PH5, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return h2 >= h3 && h2 >= h1 && l2 <= l3 && l2 > l1
	}},
}

var lowVariants = [5]variantTest{
	{model.PL1, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return l2 < l1 && l2 < l3 && h2 < h1 && h2 < h3
	}},
	{model.PL2, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return l2 <= l1 && l2 < l3 && h2 < h3 && h2 > h1
	}},
	{model.PL3, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return l2 < l1 && l2 <= l3 && h2 > h3 && h2 < h1
	}},
	{model.PL4, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return l2 <= l3 && l2 < l1 && h2 >= h3 && h2 < h1
	}},
	{model.PL5, func(h1, h2, h3, l1, l2, l3 float64) bool {
		return l2 <= l3 && l2 <= l1 && h2 >= h3 && h2 < h1
	}},
}

func classifyHigh(h1, h2, h3, l1, l2, l3 float64) (model.PivotVariant, bool) {
	for _, vt := range highVariants {
		if vt.test(h1, h2, h3, l1, l2, l3) {
			return vt.variant, true
		}
	}
	return "", false
}

func classifyLow(h1, h2, h3, l1, l2, l3 float64) (model.PivotVariant, bool) {
	for _, vt := range lowVariants {
		if vt.test(h1, h2, h3, l1, l2, l3) {
			return vt.variant, true
		}
	}
	return "", false
}

// Engine rebuilds a pivot history from a candle window on every scan.
type Engine struct {
	Left, Right int
}

// NewEngine returns an Engine with the given pivot window half-widths
// (default 1/1 per the basic pivot test).
func NewEngine(left, right int) *Engine {
	if left <= 0 {
		left = 1
	}
	if right <= 0 {
		right = 1
	}
	return &Engine{Left: left, Right: right}
}

// candidate is a basic-test pivot before variant classification.
type candidate struct {
	index  int
	isHigh bool
}

// basicPivots finds every index that is a strict-left/weak-right local
// extremum over the configured window.
func (e *Engine) basicPivots(window model.CandleWindow) []candidate {
	var out []candidate
	n := len(window)
	for i := e.Left; i < n-e.Right; i++ {
		isHigh := true
		for j := i - e.Left; j < i; j++ {
			if !(window[i].High > window[j].High) {
				isHigh = false
				break
			}
		}
		if isHigh {
			for j := i + 1; j <= i+e.Right; j++ {
				if !(window[i].High >= window[j].High) {
					isHigh = false
					break
				}
			}
		}
		if isHigh {
			out = append(out, candidate{index: i, isHigh: true})
			continue
		}

		isLow := true
		for j := i - e.Left; j < i; j++ {
			if !(window[i].Low < window[j].Low) {
				isLow = false
				break
			}
		}
		if isLow {
			for j := i + 1; j <= i+e.Right; j++ {
				if !(window[i].Low <= window[j].Low) {
					isLow = false
					break
				}
			}
		}
		if isLow {
			out = append(out, candidate{index: i, isHigh: false})
		}
	}
	return out
}

// Rebuild clears the history and walks the window left to right, accepting
// candidates on the allow-list, resolving same-type adjacency and gaps per
// the rebuild rule, and always ending in an alternating sequence.
func (e *Engine) Rebuild(window model.CandleWindow, history *model.PivotHistory, allow AllowSet) {
	history.Reset()
	if len(window) == 0 {
		return
	}

	for _, cand := range e.basicPivots(window) {
		i := cand.index
		h1, h2, h3 := window[i-1].High, window[i].High, window[i+1].High
		l1, l2, l3 := window[i-1].Low, window[i].Low, window[i+1].Low

		var variant model.PivotVariant
		var ok bool
		if cand.isHigh {
			variant, ok = classifyHigh(h1, h2, h3, l1, l2, l3)
		} else {
			variant, ok = classifyLow(h1, h2, h3, l1, l2, l3)
		}
		if !ok || !allow.accepts(variant) {
			continue
		}

		newPivot := model.Pivot{
			BarIndex: window[i].CloseTime,
			Price:    priceOf(window[i], cand.isHigh),
			Volume:   window[i].Volume,
			IsHigh:   cand.isHigh,
			Variant:  variant,
		}
		e.insert(window, history, newPivot, i)
	}
}

func priceOf(c model.Candle, isHigh bool) float64 {
	if isHigh {
		return c.High
	}
	return c.Low
}

// insert applies the three rebuild branches: adjacent same-type (keep the
// stronger), same-type with a gap (insert a synthetic opposite-type pivot
// at the gap's extreme), or different type (plain append).
func (e *Engine) insert(window model.CandleWindow, history *model.PivotHistory, newPivot model.Pivot, newIndex int) {
	last, ok := history.Last()
	if !ok {
		history.Append(newPivot)
		return
	}

	if last.IsHigh != newPivot.IsHigh {
		history.Append(newPivot)
		return
	}

	lastIndex := indexOf(window, last.BarIndex)
	if lastIndex < 0 {
		// Last pivot's bar fell out of the window; treat as a fresh start.
		history.Append(newPivot)
		return
	}

	if newIndex == lastIndex {
		return
	}

	if newIndex == lastIndex+1 {
		if isStronger(newPivot, last) {
			history.Pivots[len(history.Pivots)-1] = newPivot
		}
		return
	}

	// Positive gap: insert a synthetic opposite-type pivot at the gap's
	// extreme (earliest bar wins ties), scanning the whole gap.
	synthetic := e.gapExtreme(window, lastIndex, newIndex, newPivot.IsHigh)
	history.Append(synthetic)
	history.Append(newPivot)
}

func isStronger(candidate, incumbent model.Pivot) bool {
	if candidate.IsHigh {
		return candidate.Price > incumbent.Price
	}
	return candidate.Price < incumbent.Price
}

// gapExtreme scans window[lastIndex+1 : newIndex] for the opposite-type
// extreme: lowest low if both neighbours are highs, highest high if both
// are lows. Ties are broken by earliest bar index.
func (e *Engine) gapExtreme(window model.CandleWindow, lastIndex, newIndex int, sameTypeIsHigh bool) model.Pivot {
	bestIdx := lastIndex + 1
	for i := lastIndex + 1; i < newIndex; i++ {
		if sameTypeIsHigh {
			if window[i].Low < window[bestIdx].Low {
				bestIdx = i
			}
		} else {
			if window[i].High > window[bestIdx].High {
				bestIdx = i
			}
		}
	}

	return model.Pivot{
		BarIndex: window[bestIdx].CloseTime,
		Price:    priceOf(window[bestIdx], !sameTypeIsHigh),
		Volume:   window[bestIdx].Volume,
		IsHigh:   !sameTypeIsHigh,
		Variant:  model.Synthetic,
	}
}

func indexOf(window model.CandleWindow, closeTime time.Time) int {
	for i, c := range window {
		if c.CloseTime.Equal(closeTime) {
			return i
		}
	}
	return -1
}
