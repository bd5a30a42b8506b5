// Package period turns a topic's date range into the concrete windows that
// timespans are computed for.
package period

import (
	"fmt"
	"sort"
	"time"

	"github.com/TobiSchelling/topicmap/internal/failure"
)

// Kind is the period a timespan covers.
type Kind string

const (
	Overall Kind = "overall"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
	Custom  Kind = "custom"
)

// Kinds lists every period kind in the order snapshots compute them.
var Kinds = []Kind{Overall, Weekly, Monthly, Custom}

// ParseKind validates a period name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Overall, Weekly, Monthly, Custom:
		return k, nil
	}
	return "", failure.Configf("period", "unknown period kind %q", s)
}

// Window is a [Start, End) date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in the half-open window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ContainsInclusive reports whether t falls in [Start, End-1s]. Date based
// membership uses this bound: the end is exclusive but the comparison is
// inclusive, so a story stamped exactly one second before End is still in.
func (w Window) ContainsInclusive(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End.Add(-time.Second))
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// Windows expands [start, end) into the windows for kind. Custom windows are
// taken from custom as given (sorted by start); the other kinds ignore it.
// The last weekly or monthly window may extend past end.
func Windows(kind Kind, start, end time.Time, custom []Window) ([]Window, error) {
	start = truncateDay(start)
	end = truncateDay(end)
	if !end.After(start) && kind != Custom {
		return nil, failure.Configf("date range", "end %s is not after start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	switch kind {
	case Overall:
		return []Window{{Start: start, End: end}}, nil
	case Weekly:
		var out []Window
		for s := mondayOnOrBefore(start); s.Before(end); s = s.AddDate(0, 0, 7) {
			out = append(out, Window{Start: s, End: s.AddDate(0, 0, 7)})
		}
		return out, nil
	case Monthly:
		var out []Window
		for s := monthStart(start); s.Before(end); {
			next := monthStart(s.AddDate(0, 0, 32))
			out = append(out, Window{Start: s, End: next})
			s = next
		}
		return out, nil
	case Custom:
		out := make([]Window, len(custom))
		copy(out, custom)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
		return out, nil
	}
	return nil, failure.Configf("period", "unknown period kind %q", string(kind))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func mondayOnOrBefore(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
