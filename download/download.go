// Package download exports historical candles to CSV, for seeding
// backtest.Runner fixtures outside the live scan loop.
package download

import (
	"context"
	"encoding/csv"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/tools/log"
)

const batchSize = 500

// Feeder is the data source a Downloader pulls historical candles from.
type Feeder interface {
	AssetsInfo(pair string) model.AssetInfo
	CandlesByPeriod(ctx context.Context, pair, timeframe string, start, end time.Time) ([]model.Candle, error)
}

// Downloader writes one symbol/timeframe's historical candles to CSV.
type Downloader struct {
	exchange Feeder
}

// NewDownloader returns a Downloader reading from exchange.
func NewDownloader(exchange Feeder) Downloader {
	return Downloader{exchange: exchange}
}

// Parameters bounds a download to a [Start, End) window.
type Parameters struct {
	Start time.Time
	End   time.Time
}

// Option customizes Parameters.
type Option func(*Parameters)

// WithInterval sets an explicit [start, end) window.
func WithInterval(start, end time.Time) Option {
	return func(p *Parameters) {
		p.Start = start
		p.End = end
	}
}

// WithDays sets the window to the last `days` days up to now.
func WithDays(days int) Option {
	return func(p *Parameters) {
		p.Start = time.Now().AddDate(0, 0, -days)
		p.End = time.Now()
	}
}

// candlesCount returns how many candles of the given timeframe span
// [start, end), and the parsed interval.
func candlesCount(start, end time.Time, timeframe string) (int, time.Duration, error) {
	totalDuration := end.Sub(start)
	interval, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return 0, 0, err
	}
	return int(totalDuration / interval), interval, nil
}

// Download writes pair's timeframe candles to output as CSV, defaulting to
// the last month unless overridden by options.
func (d Downloader) Download(ctx context.Context, pair, timeframe string, output string, options ...Option) error {
	recordFile, err := os.Create(output)
	if err != nil {
		return err
	}

	now := time.Now()
	parameters := &Parameters{
		Start: now.AddDate(0, -1, 0),
		End:   now,
	}
	for _, option := range options {
		option(parameters)
	}

	// Align the start to the preceding UTC midnight.
	parameters.Start = time.Date(parameters.Start.Year(), parameters.Start.Month(), parameters.Start.Day(),
		0, 0, 0, 0, time.UTC)

	if now.Sub(parameters.End) > 0 {
		parameters.End = time.Date(parameters.End.Year(), parameters.End.Month(), parameters.End.Day(),
			0, 0, 0, 0, time.UTC)
	} else {
		parameters.End = now
	}

	candlesCount, interval, err := candlesCount(parameters.Start, parameters.End, timeframe)
	if err != nil {
		return err
	}
	candlesCount++
	log.Infof("Downloading %d candles of %s for %s", candlesCount, timeframe, pair)

	info := d.exchange.AssetsInfo(pair)
	writer := csv.NewWriter(recordFile)
	progressBar := progressbar.Default(int64(candlesCount))
	lostData := 0
	isLastLoop := false

	if err = writer.Write([]string{"time", "open", "close", "low", "high", "volume"}); err != nil {
		return err
	}

	for begin := parameters.Start; begin.Before(parameters.End); begin = begin.Add(interval * batchSize) {
		end := begin.Add(interval * batchSize)
		if end.Before(parameters.End) {
			end = end.Add(-1 * time.Second)
		} else {
			end = parameters.End
			isLastLoop = true
		}

		candles, err := d.exchange.CandlesByPeriod(ctx, pair, timeframe, begin, end)
		if err != nil {
			return err
		}

		for _, candle := range candles {
			if err := writer.Write(candle.ToSlice(info.QuotePrecision)); err != nil {
				return err
			}
		}

		countCandles := len(candles)
		if !isLastLoop {
			lostData += batchSize - countCandles
		}
		if err = progressBar.Add(countCandles); err != nil {
			log.Warnf("update progressbar fail: %s", err.Error())
		}
	}

	if err = progressBar.Close(); err != nil {
		log.Warnf("close progressbar fail: %s", err.Error())
	}

	if lostData > 0 {
		log.Warnf("%d missing candles", lostData)
	}

	writer.Flush()
	log.Info("Done!")
	return writer.Error()
}
