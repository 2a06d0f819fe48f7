// Package sentinel is the scan orchestrator: on every tick it asks the
// scheduler which timeframes are due, pulls the tradable symbol universe
// and closed candles from an exchange.Port, rebuilds each pair's pivot
// history, and publishes any confirmed CHoCH signal to a signal bus.
package sentinel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/chochsentinel/sentinel/exchange"
	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/pivot"
	"github.com/chochsentinel/sentinel/signalbus"
	"github.com/chochsentinel/sentinel/timeframe"
	"github.com/chochsentinel/sentinel/tools/errs"
	"github.com/chochsentinel/sentinel/tools/log"
	"github.com/chochsentinel/sentinel/tools/metrics"
)

// pairKey identifies one scanned (symbol, timeframe) combination.
type pairKey struct {
	symbol    string
	timeframe string
}

// pairState is the Scanner's sole, unshared record of one pair's pivot
// history and most recently recognised pattern.
type pairState struct {
	history *model.PivotHistory
	state   model.PatternState
}

// Scanner is the continuous multi-symbol, multi-timeframe CHoCH scan
// loop. Zero value is not usable; build one with NewScanner.
type Scanner struct {
	port       exchange.Port
	scheduler  *timeframe.Scheduler
	engine     *pivot.Engine
	recognizer *pivot.Recognizer
	confirmer  *pivot.Confirmer
	allow      pivot.AllowSet
	bus        *signalbus.Bus[model.Signal]
	collector  *metrics.Collector

	symbols         []string
	fetchAllSymbols bool
	quoteCurrency   string
	minVolume24h    float64
	maxPairs        int
	historicalLimit int
	keepPivots      int
	tickInterval    time.Duration

	mu    sync.Mutex
	pairs map[pairKey]*pairState
}

// Option customizes a Scanner at construction time.
type Option func(*Scanner)

// WithTickInterval overrides the default 5s poll interval between
// GetScannable checks.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scanner) { s.tickInterval = d }
}

// WithMetrics attaches a Collector that observes scans, signals, fetch
// errors, and tracked-pair count. Omitting this option leaves metrics
// collection disabled (the Collector's nil-receiver methods are no-ops).
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Scanner) { s.collector = c }
}

// NewScanner builds a Scanner from settings, a data port, and the signal
// bus confirmed signals are published to.
func NewScanner(settings model.Settings, port exchange.Port, bus *signalbus.Bus[model.Signal], options ...Option) *Scanner {
	tfs := make([]timeframe.Timeframe, 0, len(settings.Timeframes))
	for _, tf := range settings.Timeframes {
		tfs = append(tfs, timeframe.Timeframe(tf))
	}

	s := &Scanner{
		port:       port,
		scheduler:  timeframe.NewScheduler(tfs),
		engine:     pivot.NewEngine(settings.Pivot.Left, settings.Pivot.Right),
		recognizer: pivot.NewRecognizer(),
		confirmer:  pivot.NewConfirmer(),
		allow:      pivot.NewAllowSet(settings.Pivot.Allow),
		bus:        bus,

		symbols:         settings.Symbols,
		fetchAllSymbols: settings.FetchAllSymbols,
		quoteCurrency:   settings.QuoteCurrency,
		minVolume24h:    settings.MinVolume24h,
		maxPairs:        settings.MaxPairs,
		historicalLimit: settings.HistoricalLimit,
		keepPivots:      settings.Pivot.KeepPivots,
		tickInterval:    5 * time.Second,

		pairs: make(map[pairKey]*pairState),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Run polls the scheduler every tick interval until ctx is cancelled,
// scanning every due timeframe across the configured or discovered symbol
// universe. It returns nil on clean cancellation.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				log.Error("sentinel: tick failed: ", err)
			}
		}
	}
}

// tick runs one scan pass: every timeframe the scheduler reports as due
// is scanned across the full symbol universe, then marked scanned so the
// scheduler won't re-admit it until its next close.
func (s *Scanner) tick(ctx context.Context) error {
	now := time.Now().UTC()

	due, err := s.scheduler.GetScannable(now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	symbols, err := s.symbolUniverse(ctx)
	if err != nil {
		return err
	}

	for _, tf := range due {
		for _, symbol := range symbols {
			if err := s.scanPair(ctx, symbol, tf); err != nil {
				log.WithField("symbol", symbol).WithField("timeframe", string(tf)).
					Error("sentinel: scan pair failed: ", err)
			}
		}
		if err := s.scheduler.MarkScanned(tf, now); err != nil {
			log.Error("sentinel: mark scanned failed: ", err)
		}
	}
	return nil
}

// symbolUniverse returns the configured symbol list, or a freshly
// discovered volume-ranked one when FETCH_ALL_COINS is set.
func (s *Scanner) symbolUniverse(ctx context.Context) ([]string, error) {
	if !s.fetchAllSymbols {
		return s.symbols, nil
	}
	return s.port.ListSymbols(ctx, s.quoteCurrency, s.minVolume24h, s.maxPairs)
}

// scanPair fetches closed candles for one (symbol, timeframe), rebuilds
// its pivot history, and publishes a signal on confirmation.
func (s *Scanner) scanPair(ctx context.Context, symbol string, tf timeframe.Timeframe) error {
	s.collector.ObserveScan(string(tf))

	candles, err := s.fetchWithRetry(ctx, symbol, tf)
	if err != nil {
		s.collector.ObserveFetchError(symbol)
		return err
	}
	if len(candles) == 0 {
		return nil
	}
	window := model.CandleWindow(candles)

	ps := s.stateFor(symbol, string(tf))

	s.engine.Rebuild(window, ps.history, s.allow)

	ps.state = model.PatternState{}
	if recognized, ok := s.recognizer.Recognize(ps.history, 0); ok {
		ps.state = recognized
	}

	if !ps.state.Recognised() {
		return nil
	}

	sig, ok := s.confirmer.Confirm(&ps.state, ps.history, window, symbol, string(tf))
	if !ok {
		return nil
	}

	s.collector.ObserveSignal(string(sig.Direction))
	s.bus.Publish(sig)
	return nil
}

// fetchWithRetry fetches closed OHLCV for one pair, retrying transient
// exchange failures with exponential backoff.
func (s *Scanner) fetchWithRetry(ctx context.Context, symbol string, tf timeframe.Timeframe) ([]model.Candle, error) {
	b := &backoff.Backoff{Min: 250 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		candles, err := s.port.FetchClosedOHLCV(ctx, symbol, tf, s.historicalLimit)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		if !errors.Is(err, errs.ErrTransientIO) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return nil, lastErr
}

// stateFor returns the persisted pairState for (symbol, timeframe),
// creating a fresh one bounded to keepPivots on first use.
func (s *Scanner) stateFor(symbol, tf string) *pairState {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{symbol: symbol, timeframe: tf}
	ps, ok := s.pairs[key]
	if !ok {
		ps = &pairState{history: model.NewPivotHistory(s.keepPivots)}
		s.pairs[key] = ps
		s.collector.SetTrackedPairs(len(s.pairs))
	}
	return ps
}

// TrackedPairs reports how many (symbol, timeframe) pairs currently carry
// scanner state, for status reporting.
func (s *Scanner) TrackedPairs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pairs)
}
