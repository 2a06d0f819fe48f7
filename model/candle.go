package model

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/chochsentinel/sentinel/tools/errs"
)

// Candle is one closed OHLCV bar for a (symbol, timeframe) pair.
type Candle struct {
	Pair      string
	Time      time.Time // open time
	CloseTime time.Time // close time; the key used for alignment and ordering
	UpdatedAt time.Time
	Open      float64
	Close     float64
	Low       float64
	High      float64
	Volume    float64
	Complete  bool

	Metadata map[string]float64
}

// Empty reports whether a Candle carries no data.
func (c Candle) Empty() bool {
	return c.Pair == "" && c.Close == 0 && c.Open == 0 && c.Volume == 0
}

// Validate checks the OHLC invariants required of every emitted candle:
// low <= min(open, close) and high >= max(open, close).
func (c Candle) Validate() error {
	if c.Low > math.Min(c.Open, c.Close) {
		return fmt.Errorf("%w: low %f above min(open,close) %f", errs.ErrInvariant, c.Low, math.Min(c.Open, c.Close))
	}
	if c.High < math.Max(c.Open, c.Close) {
		return fmt.Errorf("%w: high %f below max(open,close) %f", errs.ErrInvariant, c.High, math.Max(c.Open, c.Close))
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume %f", errs.ErrInvariant, c.Volume)
	}
	return nil
}

// ToSlice renders the candle as a row for CSV export.
func (c Candle) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", c.CloseTime.Unix()),
		strconv.FormatFloat(c.Open, 'f', precision, 64),
		strconv.FormatFloat(c.Close, 'f', precision, 64),
		strconv.FormatFloat(c.Low, 'f', precision, 64),
		strconv.FormatFloat(c.High, 'f', precision, 64),
		strconv.FormatFloat(c.Volume, 'f', precision, 64),
	}
}

// HeikinAshi smooths a candle sequence using the running previous average bar.
type HeikinAshi struct {
	PreviousHACandle Candle
}

func NewHeikinAshi() *HeikinAshi {
	return &HeikinAshi{}
}

func (c Candle) ToHeikinAshi(ha *HeikinAshi) Candle {
	haCandle := ha.CalculateHeikinAshi(c)
	return Candle{
		Pair:      c.Pair,
		Open:      haCandle.Open,
		High:      haCandle.High,
		Low:       haCandle.Low,
		Close:     haCandle.Close,
		Volume:    c.Volume,
		Complete:  c.Complete,
		Time:      c.Time,
		CloseTime: c.CloseTime,
		UpdatedAt: c.UpdatedAt,
	}
}

func (ha *HeikinAshi) CalculateHeikinAshi(c Candle) Candle {
	var hkCandle Candle

	openValue := ha.PreviousHACandle.Open
	closeValue := ha.PreviousHACandle.Close
	if ha.PreviousHACandle.Empty() {
		openValue = c.Open
		closeValue = c.Close
	}

	hkCandle.Open = (openValue + closeValue) / 2
	hkCandle.Close = (c.Open + c.High + c.Low + c.Close) / 4
	hkCandle.High = math.Max(c.High, math.Max(hkCandle.Open, hkCandle.Close))
	hkCandle.Low = math.Min(c.Low, math.Min(hkCandle.Open, hkCandle.Close))
	ha.PreviousHACandle = hkCandle

	return hkCandle
}

// CandleWindow is the ordered sequence of the N most recent closed candles
// for a (symbol, timeframe) pair. The currently-forming candle is never
// included; operations that depend on adjacency use slice index, not
// wall-time offset, so timestamp gaps are tolerated.
type CandleWindow []Candle

// LastValues returns the last n candles, or the whole window if it is
// shorter than n.
func (w CandleWindow) LastValues(n int) CandleWindow {
	if l := len(w); l > n {
		return w[l-n:]
	}
	return w
}
