package types

import "time"

// GroupCount is one row of a group-by rollup.
type GroupCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// DayCount is the number of events that happened on a UTC day.
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// Totals are the headline counters of the admin dashboard.
type Totals struct {
	Users            int `json:"users"`
	Properties       int `json:"properties"`
	ActiveProperties int `json:"activeProperties"`
	ContactReveals   int `json:"contactReveals"`
}

// Overview is the admin dashboard summary.
type Overview struct {
	Totals Totals       `json:"totals"`
	ByCity []GroupCount `json:"byCity"`
	ByType []GroupCount `json:"byType"`
	ByRole []GroupCount `json:"byRole"`
}

// Trends holds day-bucketed creation counts over a lookback window.
type Trends struct {
	Days           int        `json:"days"`
	Properties     []DayCount `json:"properties"`
	Users          []DayCount `json:"users"`
	ContactReveals []DayCount `json:"contactReveals"`
}
