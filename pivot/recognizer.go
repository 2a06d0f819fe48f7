package pivot

import "github.com/chochsentinel/sentinel/model"

// Recognizer validates an ordered eight-pivot structure over the newest
// pivots in a history and records its group/direction/reference prices.
type Recognizer struct{}

// NewRecognizer returns a ready-to-use Recognizer. It is stateless: all
// input comes from the PivotHistory passed to Recognize.
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// Recognize evaluates the eight newest pivots (or, with offset=1, pivots
// [p2..p9]) for alternation, retest, extreme, breakout, and one of the
// G1/G2/G3 geometric orderings. It returns the zero PatternState and false
// if fewer than 8+offset pivots exist or no constraint set matches.
func (r *Recognizer) Recognize(history *model.PivotHistory, offset int) (model.PatternState, bool) {
	needed := 8 + offset
	if len(history.Pivots) < needed {
		return model.PatternState{}, false
	}

	window := history.Pivots[len(history.Pivots)-needed:]
	p := window[offset : offset+8] // p[0]=p1 .. p[7]=p8

	if up, ok := r.tryDirection(p, true); ok {
		return up, true
	}
	if down, ok := r.tryDirection(p, false); ok {
		return down, true
	}
	return model.PatternState{}, false
}

func (r *Recognizer) tryDirection(p []model.Pivot, up bool) (model.PatternState, bool) {
	if !alternates(p, up) {
		return model.PatternState{}, false
	}
	if !retest(p, up) {
		return model.PatternState{}, false
	}
	if !extreme(p, up) {
		return model.PatternState{}, false
	}
	if !breakout(p, up) {
		return model.PatternState{}, false
	}

	group, ok := matchGroup(p, up)
	if !ok {
		return model.PatternState{}, false
	}

	dir := model.DirectionDown
	if up {
		dir = model.DirectionUp
	}

	return model.PatternState{
		Group:      group,
		Direction:  dir,
		P2:         p[1].Price,
		P4:         p[3].Price,
		P5:         p[4].Price,
		P6:         p[5].Price,
		P7:         p[6].Price,
		P8:         p[7].Price,
		P8BarIndex: p[7].BarIndex,
	}, true
}

// alternates checks p1=low,p2=high,...,p8=high for up; the mirror for down.
func alternates(p []model.Pivot, up bool) bool {
	for i, pv := range p {
		wantHigh := i%2 == 1 // p2,p4,p6,p8 (index 1,3,5,7) are highs
		if !up {
			wantHigh = i%2 == 0 // mirror: p1,p3,p5,p7 highs, p2..p8 lows
		}
		if pv.IsHigh != wantHigh {
			return false
		}
	}
	return true
}

func retest(p []model.Pivot, up bool) bool {
	p4, p7 := p[3], p[6]
	if up {
		return p7.Price < p4.Price
	}
	return p7.Price > p4.Price
}

func extreme(p []model.Pivot, up bool) bool {
	p8 := p[7].Price
	for _, pv := range p {
		if up && pv.Price > p8 {
			return false
		}
		if !up && pv.Price < p8 {
			return false
		}
	}
	return true
}

func breakout(p []model.Pivot, up bool) bool {
	p2, p5 := p[1], p[4]
	if up {
		return p5.Price > p2.Price
	}
	return p5.Price < p2.Price
}

// matchGroup tests G1, G2, G3 in priority order and returns the first
// match for the given direction.
func matchGroup(p []model.Pivot, up bool) (model.Group, bool) {
	p2, p3, p4 := p[1].Price, p[2].Price, p[3].Price
	p5, p6, p7, p8 := p[4].Price, p[5].Price, p[6].Price, p[7].Price

	if up {
		if p2 < p4 && p4 < p6 && p6 < p8 && p3 < p5 && p5 < p7 {
			return model.GroupG1, true
		}
		if p3 < p7 && p7 < p5 && p2 < p6 && p6 < p4 && p4 < p8 && p2 < p5 {
			return model.GroupG2, true
		}
		if p3 < p5 && p5 < p7 && p2 < p6 && p6 < p4 && p4 < p8 && p2 < p5 {
			return model.GroupG3, true
		}
		return model.GroupNone, false
	}

	if p2 > p4 && p4 > p6 && p6 > p8 && p3 > p5 && p5 > p7 {
		return model.GroupG1, true
	}
	if p3 > p7 && p7 > p5 && p2 > p6 && p6 > p4 && p4 > p8 && p2 > p5 {
		return model.GroupG2, true
	}
	if p3 > p5 && p5 > p7 && p2 > p6 && p6 > p4 && p4 > p8 && p2 > p5 {
		return model.GroupG3, true
	}
	return model.GroupNone, false
}
