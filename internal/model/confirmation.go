// Package model defines the data structures shared by the ledger, its storage
// backends and the HTTP boundary.
package model

import "time"

// DayLayout is the calendar-date format used as the ledger's day key.
const DayLayout = "2006-01-02"

// Confirmation records that a user acknowledged the bin state on a given day.
//
// UserID is the canonical identity key: at most one Confirmation exists per
// (Day, UserID). UserName is display-only and may repeat across users.
type Confirmation struct {
	UserName  string    `json:"userName"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Day       string    `json:"-"`
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}
