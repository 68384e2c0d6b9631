package model

import "time"

// ItemStatistics is the per-item click/impression aggregate that feeds the
// popularity and exploration signals. Zero value represents an item with no
// feedback history yet (spec §3 "Lifecycle").
type ItemStatistics struct {
	ItemID              string
	ImpressionCount     uint64
	ClickCount          uint64
	DebiasedImpressions float64
	DebiasedClicks      float64
	LastEventAt         time.Time
}

// EventKind distinguishes the two feedback event types. A click does not
// imply an impression and vice versa — ingestion sends both explicitly
// (spec §7 Open Question 2).
type EventKind string

const (
	EventImpression EventKind = "impression"
	EventClick      EventKind = "click"
)

// FeedbackEvent is the boundary format for a single click/impression report.
type FeedbackEvent struct {
	ItemID        string
	Action        EventKind
	PositionShown int // 1-based display rank.
	Timestamp     time.Time
}
