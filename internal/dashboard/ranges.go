package dashboard

import "time"

// TimeRange is one selectable chart window.
type TimeRange struct {
	Label  string
	Window time.Duration
}

// Ranges lists the windows Up and Down step through, shortest first.
var Ranges = []TimeRange{
	{Label: "30 minutes", Window: 30 * time.Minute},
	{Label: "1 hour", Window: time.Hour},
	{Label: "1 day", Window: 24 * time.Hour},
	{Label: "1 week", Window: 7 * 24 * time.Hour},
	{Label: "1 month", Window: 30 * 24 * time.Hour},
	{Label: "1 year", Window: 365 * 24 * time.Hour},
}
