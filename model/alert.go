package model

import "time"

// Alert is the persisted record of one confirmed Signal, fanned out to the
// notifier, the dashboard, and the alert store unchanged.
type Alert struct {
	ID         string    `db:"id" json:"id" gorm:"primaryKey"`
	Symbol     string    `db:"symbol" json:"symbol" gorm:"index"`
	Timeframe  string    `db:"timeframe" json:"timeframe" gorm:"index"`
	SignalType string    `db:"signal_type" json:"signal_type"`
	Direction  Direction `db:"direction" json:"direction" gorm:"index"`
	PatternGroup Group   `db:"pattern_group" json:"pattern_group"`
	Price      float64   `db:"price" json:"price"`

	SignalTimestamp time.Time `db:"signal_timestamp" json:"signal_timestamp" gorm:"index"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`

	ChartLink string `db:"chart_link" json:"chart_link"`
	IsFutures bool   `db:"is_futures" json:"is_futures"`
	Region    string `db:"region" json:"region"`

	// Confidence and Notes are optional annotations; nil means absent.
	Confidence *float64 `db:"confidence" json:"confidence,omitempty"`
	Notes      *string  `db:"notes" json:"notes,omitempty"`

	// ArchivedAt/ArchiveReason are set when the alert is moved to the
	// archive stream; a nil ArchivedAt means the alert is still live.
	ArchivedAt     *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	ArchiveReason  *string    `db:"archive_reason" json:"archive_reason,omitempty"`
}

// Archived reports whether the alert has been moved to the archive stream.
func (a Alert) Archived() bool { return a.ArchivedAt != nil }
