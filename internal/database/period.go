package database

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05"
)

// FormatTime renders t the way the store keeps dates.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseDate accepts either a bare date or a stored timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// nullTime parses a nullable stored timestamp; NULL or garbage is zero.
func nullTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := ParseDate(ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return FormatTime(t)
}

// FormatRange formats a [start, end) window for display.
// Single day: "Feb 06, 2026"; range: "Feb 01 - Feb 06, 2026" where the end
// shown is the last day inside the window.
func FormatRange(start, end time.Time) string {
	last := end.AddDate(0, 0, -1)
	if !last.After(start) {
		return start.Format("Jan 02, 2006")
	}
	if start.Year() != last.Year() {
		return fmt.Sprintf("%s - %s", start.Format("Jan 02, 2006"), last.Format("Jan 02, 2006"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 02"), last.Format("Jan 02, 2006"))
}
