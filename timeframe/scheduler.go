package timeframe

import (
	"sync"
	"time"
)

const defaultBuffer = 30 * time.Second

// scheduledState is the per-timeframe scan-guard: last_scanned_close is
// nil until a close has been scanned, guaranteeing each close is scanned
// at most once.
type scheduledState struct {
	lastScannedClose time.Time
	hasScanned       bool
}

// Scheduler reports, for each configured timeframe, whether its most
// recently closed candle is ready to scan and guards against scanning the
// same close twice.
type Scheduler struct {
	mu     sync.Mutex
	buffer time.Duration
	states map[Timeframe]*scheduledState
}

// NewScheduler creates a Scheduler tracking tfs, using the default 30s
// post-close buffer.
func NewScheduler(tfs []Timeframe) *Scheduler {
	return NewSchedulerWithBuffer(tfs, defaultBuffer)
}

// NewSchedulerWithBuffer is NewScheduler with an explicit buffer, used by
// tests that need to exercise boundary instants precisely.
func NewSchedulerWithBuffer(tfs []Timeframe, buffer time.Duration) *Scheduler {
	states := make(map[Timeframe]*scheduledState, len(tfs))
	for _, tf := range tfs {
		states[tf] = &scheduledState{}
	}
	return &Scheduler{buffer: buffer, states: states}
}

// PrevClose returns the greatest instant <= now that closes a candle of tf.
func (s *Scheduler) PrevClose(tf Timeframe, now time.Time) (time.Time, error) {
	r, err := Reference(tf)
	if err != nil {
		return time.Time{}, err
	}
	interval, err := tf.Interval()
	if err != nil {
		return time.Time{}, err
	}
	return PeriodStart(now, r, interval), nil
}

// NextClose returns PrevClose(tf, now) + interval.
func (s *Scheduler) NextClose(tf Timeframe, now time.Time) (time.Time, error) {
	prev, err := s.PrevClose(tf, now)
	if err != nil {
		return time.Time{}, err
	}
	interval, err := tf.Interval()
	if err != nil {
		return time.Time{}, err
	}
	return prev.Add(interval), nil
}

// ReadyTime returns PrevClose(tf, now) + buffer.
func (s *Scheduler) ReadyTime(tf Timeframe, now time.Time) (time.Time, error) {
	prev, err := s.PrevClose(tf, now)
	if err != nil {
		return time.Time{}, err
	}
	return prev.Add(s.buffer), nil
}

// IsReady reports whether tf's most recent close is past its buffer and has
// not yet been marked scanned.
func (s *Scheduler) IsReady(tf Timeframe, now time.Time) (bool, error) {
	ready, err := s.ReadyTime(tf, now)
	if err != nil {
		return false, err
	}
	if now.Before(ready) {
		return false, nil
	}

	prev, err := s.PrevClose(tf, now)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(tf)
	if st.hasScanned && !st.lastScannedClose.Before(prev) {
		return false, nil
	}
	return true, nil
}

// GetScannable returns every tracked timeframe whose IsReady(now) is true.
func (s *Scheduler) GetScannable(now time.Time) ([]Timeframe, error) {
	s.mu.Lock()
	tfs := make([]Timeframe, 0, len(s.states))
	for tf := range s.states {
		tfs = append(tfs, tf)
	}
	s.mu.Unlock()

	var out []Timeframe
	for _, tf := range tfs {
		ready, err := s.IsReady(tf, now)
		if err != nil {
			return nil, err
		}
		if ready {
			out = append(out, tf)
		}
	}
	return out, nil
}

// MarkScanned records that the close at PrevClose(tf, now) has been
// successfully scanned, so a later IsReady query for the same close
// returns false.
func (s *Scheduler) MarkScanned(tf Timeframe, now time.Time) error {
	prev, err := s.PrevClose(tf, now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(tf)
	st.lastScannedClose = prev
	st.hasScanned = true
	return nil
}

func (s *Scheduler) stateLocked(tf Timeframe) *scheduledState {
	st, ok := s.states[tf]
	if !ok {
		st = &scheduledState{}
		s.states[tf] = st
	}
	return st
}
