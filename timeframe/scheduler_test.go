package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerReadiness(t *testing.T) {
	sched := NewScheduler([]Timeframe{"15m"})

	notReady := time.Date(2025, 11, 10, 14, 30, 29, 0, time.UTC)
	ready, err := sched.IsReady("15m", notReady)
	require.NoError(t, err)
	require.False(t, ready, "expected not ready at %v", notReady)

	firstReady := time.Date(2025, 11, 10, 14, 30, 30, 0, time.UTC)
	ready, err = sched.IsReady("15m", firstReady)
	require.NoError(t, err)
	require.True(t, ready, "expected ready at %v", firstReady)

	require.NoError(t, sched.MarkScanned("15m", firstReady))

	stillSameClose := time.Date(2025, 11, 10, 14, 44, 59, 0, time.UTC)
	ready, err = sched.IsReady("15m", stillSameClose)
	require.NoError(t, err)
	require.False(t, ready, "expected not ready at %v after marking", stillSameClose)

	nextClose := time.Date(2025, 11, 10, 14, 45, 30, 0, time.UTC)
	ready, err = sched.IsReady("15m", nextClose)
	require.NoError(t, err)
	require.True(t, ready, "expected ready again at %v", nextClose)
}

func TestSchedulerAtMostOnce(t *testing.T) {
	sched := NewScheduler([]Timeframe{"5m"})
	t1 := time.Date(2025, 11, 10, 14, 30, 31, 0, time.UTC)
	t2 := time.Date(2025, 11, 10, 14, 34, 0, 0, time.UTC)

	ready, _ := sched.IsReady("5m", t1)
	require.True(t, ready, "expected ready at t1")
	require.NoError(t, sched.MarkScanned("5m", t1))

	ready, _ = sched.IsReady("5m", t2)
	require.False(t, ready, "expected not ready at t2 for the same close")
}

func TestSchedulerAlignmentNative(t *testing.T) {
	sched := NewScheduler([]Timeframe{"1h"})
	now := time.Date(2025, 11, 10, 14, 37, 0, 0, time.UTC)
	next, err := sched.NextClose("1h", now)
	require.NoError(t, err)
	require.True(t, next.Equal(time.Date(2025, 11, 10, 15, 0, 0, 0, time.UTC)))
}

func TestSchedulerAlignment25m(t *testing.T) {
	sched := NewScheduler([]Timeframe{"25m"})
	r := time.Date(2025, 10, 24, 17, 5, 0, 0, time.UTC)
	now := r.Add(63 * time.Minute)
	next, err := sched.NextClose("25m", now)
	require.NoError(t, err)
	require.True(t, next.Equal(r.Add(75*time.Minute)))
}
