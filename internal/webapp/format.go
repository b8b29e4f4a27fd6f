package webapp

import "time"

// amsterdam is the display timezone for the upstream API's UTC timestamps.
// The lookup only fails on a system without tzdata; standard time keeps the
// pages rendering there.
var amsterdam = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}

	return loc
}()

// formatDateTime renders an upstream RFC 3339 timestamp as a Dutch date and
// a clock time. Unparseable input is returned as-is with an empty time, the
// page still renders.
func formatDateTime(value string) (date, clock string) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value, ""
	}
	t = t.In(amsterdam)

	return t.Format("02-01-2006"), t.Format("15:04")
}

// seasonStartDate is the first of August of the current sport season.
func seasonStartDate(now time.Time) string {
	year := now.Year()
	if now.Month() < time.August {
		year--
	}

	return time.Date(year, time.August, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// monthAgo returns the date one month before now, the default submissions
// query window.
func monthAgo(now time.Time) string {
	return now.AddDate(0, -1, 0).Format("2006-01-02")
}
