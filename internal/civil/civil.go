// Package civil handles the fixed UTC+8 wall-clock calendar that all
// readings live in. The meter endpoint, the database, and every
// aggregation window use this single offset; the host timezone must
// never leak into comparisons.
package civil

import "time"

// Location is the fixed-offset calendar for all timestamps.
var Location = time.FixedZone("UTC+8", 8*60*60)

const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02 15:04:05"
)

// Now returns the current wall-clock time in the fixed calendar.
func Now() time.Time {
	return time.Now().In(Location)
}

// DayStart returns midnight of t's calendar day.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}

// ParseDate parses a YYYY-MM-DD date in the fixed calendar.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, Location)
}

// ParseDateOr parses a YYYY-MM-DD date, falling back to the given time
// when the input is empty or malformed. Malformed dates are a fallback,
// not an error, so callers always get a usable reference point.
func ParseDateOr(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := ParseDate(s)
	if err != nil {
		return fallback
	}
	return t
}

// ParseDateTime parses a stored civil datetime string.
func ParseDateTime(s string) (time.Time, error) {
	return time.ParseInLocation(DateTimeFormat, s, Location)
}
