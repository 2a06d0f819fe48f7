package order

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/chochsentinel/sentinel/exchange"
	"github.com/chochsentinel/sentinel/model"
)

// Summary accumulates win/loss statistics for one symbol across a backtest
// run, grouping long and short trades separately.
type Summary struct {
	Pair             string
	WinLong          []float64
	WinLongPercent   []float64
	WinShort         []float64
	WinShortPercent  []float64
	LoseLong         []float64
	LoseLongPercent  []float64
	LoseShort        []float64
	LoseShortPercent []float64
	Volume           float64
}

func (s Summary) Win() []float64        { return append(s.WinLong, s.WinShort...) }
func (s Summary) WinPercent() []float64 { return append(s.WinLongPercent, s.WinShortPercent...) }
func (s Summary) Lose() []float64       { return append(s.LoseLong, s.LoseShort...) }
func (s Summary) LosePercent() []float64 {
	return append(s.LoseLongPercent, s.LoseShortPercent...)
}

func (s Summary) Profit() float64 {
	profit := 0.0
	for _, value := range append(s.Win(), s.Lose()...) {
		profit += value
	}
	return profit
}

// SQN is the System Quality Number: sqrt(N) * avgProfit / stddev(profit).
func (s Summary) SQN() float64 {
	total := float64(len(s.Win()) + len(s.Lose()))
	avgProfit := s.Profit() / total

	stdDev := 0.0
	for _, profit := range append(s.Win(), s.Lose()...) {
		stdDev += math.Pow(profit-avgProfit, 2)
	}
	stdDev = math.Sqrt(stdDev / total)

	return math.Sqrt(total) * (avgProfit / stdDev)
}

// Payoff is the average winning percentage over the average losing
// percentage (absolute value); zero if there is no win, no loss, or the
// average loss is zero.
func (s Summary) Payoff() float64 {
	avgWin, avgLose := 0.0, 0.0
	for _, value := range s.WinPercent() {
		avgWin += value
	}
	for _, value := range s.LosePercent() {
		avgLose += value
	}

	if len(s.Win()) == 0 || len(s.Lose()) == 0 || avgLose == 0 {
		return 0
	}
	return (avgWin / float64(len(s.Win()))) / math.Abs(avgLose/float64(len(s.Lose())))
}

// ProfitFactor is total winning percentage over total losing percentage
// (absolute value); zero if there are no losses.
func (s Summary) ProfitFactor() float64 {
	if len(s.Lose()) == 0 {
		return 0
	}
	profit, loss := 0.0, 0.0
	for _, value := range s.WinPercent() {
		profit += value
	}
	for _, value := range s.LosePercent() {
		loss += value
	}
	return profit / math.Abs(loss)
}

// WinPercentage is the fraction of trades that won, as a percentage.
func (s Summary) WinPercentage() float64 {
	if len(s.Win())+len(s.Lose()) == 0 {
		return 0
	}
	return float64(len(s.Win())) / float64(len(s.Win())+len(s.Lose())) * 100
}

func (s Summary) String() string {
	tableString := &strings.Builder{}
	table := tablewriter.NewWriter(tableString)
	_, quote := exchange.SplitAssetQuote(s.Pair)

	data := [][]string{
		{"Coin", s.Pair},
		{"Trades", strconv.Itoa(len(s.Lose()) + len(s.Win()))},
		{"Win", strconv.Itoa(len(s.Win()))},
		{"Loss", strconv.Itoa(len(s.Lose()))},
		{"% Win", fmt.Sprintf("%.1f", s.WinPercentage())},
		{"Payoff", fmt.Sprintf("%.1f", s.Payoff()*100)},
		{"Pr.Fact", fmt.Sprintf("%.1f", s.ProfitFactor())},
		{"Profit", fmt.Sprintf("%.4f %s", s.Profit(), quote)},
		{"Volume", fmt.Sprintf("%.4f %s", s.Volume, quote)},
	}
	table.AppendBulk(data)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()
	return tableString.String()
}

// SaveReturns writes win/loss percentages, one per line, for offline
// statistical analysis (e.g. a return-distribution plot).
func (s Summary) SaveReturns(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, value := range append(s.WinPercent(), s.LosePercent()...) {
		if _, err := file.WriteString(fmt.Sprintf("%.4f\n", value)); err != nil {
			return err
		}
	}
	return nil
}

// Trade is one closed spot-style position, recorded for backtest reporting.
type Trade struct {
	Pair          string
	ProfitPercent float64
	ProfitValue   float64
	Side          model.SideType
	Duration      time.Duration
	CreatedAt     time.Time
}
