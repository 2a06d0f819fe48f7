package pivot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chochsentinel/sentinel/model"
)

func pivotAt(t time.Time, price float64, isHigh bool) model.Pivot {
	return model.Pivot{BarIndex: t, Price: price, IsHigh: isHigh}
}

func TestRecognizeG1Uptrend(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	history := model.NewPivotHistory(100)
	prices := []float64{95, 102, 98, 106, 103, 110, 105, 115}
	for i, p := range prices {
		history.Append(pivotAt(base.Add(time.Duration(i)*time.Hour), p, i%2 == 1))
	}

	rec := NewRecognizer()
	state, ok := rec.Recognize(history, 0)
	require.True(t, ok, "expected pattern recognised")
	require.Equal(t, model.DirectionUp, state.Direction)
	require.Equal(t, model.GroupG1, state.Group)
	require.Equal(t, 115.0, state.P8)
}

func TestRecognizeInsufficientPivots(t *testing.T) {
	history := model.NewPivotHistory(100)
	history.Append(pivotAt(time.Now(), 10, true))

	rec := NewRecognizer()
	_, ok := rec.Recognize(history, 0)
	require.False(t, ok, "expected no pattern with <8 pivots")
}
