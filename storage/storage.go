// Package storage persists confirmed Signals as Alert records and exposes
// the query surface the dashboard and notifier rely on: composable filters,
// pagination, aggregate stats, and an archive stream.
package storage

import (
	"time"

	"github.com/chochsentinel/sentinel/model"
)

// AlertFilter is a composable predicate over a single Alert. Query methods
// accept a variadic list and keep only alerts that satisfy every filter.
type AlertFilter func(model.Alert) bool

// AlertStore is the persistence surface for confirmed CHoCH alerts.
type AlertStore interface {
	// Save inserts a new alert record.
	Save(alert *model.Alert) error

	// Archive moves an alert to the archive stream, stamping ArchivedAt and
	// ArchiveReason. It is a no-op error if the id does not exist.
	Archive(id string, reason string) error

	// Recent returns up to limit non-archived alerts, newest first. A
	// limit <= 0 or > 500 is clamped to 500.
	Recent(limit int, filters ...AlertFilter) ([]*model.Alert, error)

	// Filter returns every alert, archived or not, matching all filters.
	Filter(filters ...AlertFilter) ([]*model.Alert, error)

	// Stats aggregates counts by signal type, direction, and symbol across
	// non-archived alerts matching filters.
	Stats(filters ...AlertFilter) (Stats, error)

	// UniqueValues returns the distinct values seen for one of "symbol",
	// "timeframe", "direction", or "signal_type" across non-archived alerts.
	UniqueValues(field string) ([]string, error)
}

// Stats is the aggregate view the dashboard's stats endpoint returns.
type Stats struct {
	Total        int            `json:"total"`
	ByDirection  map[string]int `json:"by_direction"`
	BySignalType map[string]int `json:"by_signal_type"`
	BySymbol     map[string]int `json:"by_symbol"`
}

// WithSymbol keeps alerts for one symbol.
func WithSymbol(symbol string) AlertFilter {
	return func(a model.Alert) bool { return a.Symbol == symbol }
}

// WithTimeframe keeps alerts for one timeframe.
func WithTimeframe(timeframe string) AlertFilter {
	return func(a model.Alert) bool { return a.Timeframe == timeframe }
}

// WithDirection keeps alerts of one direction.
func WithDirection(direction model.Direction) AlertFilter {
	return func(a model.Alert) bool { return a.Direction == direction }
}

// WithSignalType keeps alerts of one signal type.
func WithSignalType(signalType string) AlertFilter {
	return func(a model.Alert) bool { return a.SignalType == signalType }
}

// WithDateRange keeps alerts whose SignalTimestamp falls in [from, to].
// A zero from or to leaves that bound open.
func WithDateRange(from, to time.Time) AlertFilter {
	return func(a model.Alert) bool {
		if !from.IsZero() && a.SignalTimestamp.Before(from) {
			return false
		}
		if !to.IsZero() && a.SignalTimestamp.After(to) {
			return false
		}
		return true
	}
}

// WithoutArchived keeps only alerts that have not been archived.
func WithoutArchived() AlertFilter {
	return func(a model.Alert) bool { return !a.Archived() }
}
