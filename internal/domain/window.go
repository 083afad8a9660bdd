package domain

import (
	"time"

	"gorm.io/datatypes"
)

// WindowState is the per-medication state derived on every read
type WindowState string

const (
	WithinWindow  WindowState = "within_window"
	OutsideWindow WindowState = "outside_window"
)

// IsWithinWindow reports whether now falls in [start, end], inclusive on
// both ends, comparing whole minutes since midnight.
//
// Only same-day windows are supported. A window with start after end
// (22:00-06:00) never contains any instant.
func IsWithinWindow(start, end datatypes.Time, now time.Time) bool {
	nowMinutes := now.Hour()*60 + now.Minute()
	return MinutesOfDay(start) <= nowMinutes && nowMinutes <= MinutesOfDay(end)
}

// CheckRecordable is the two-phase recording decision. Outside the window
// the first call is advisory and fails with ErrOutOfWindowUnconfirmed; a
// call with confirmedOutsideWindow set is authoritative.
func CheckRecordable(withinWindow, confirmedOutsideWindow bool) error {
	if !withinWindow && !confirmedOutsideWindow {
		return ErrOutOfWindowUnconfirmed
	}
	return nil
}
