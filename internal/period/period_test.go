package period

import (
	"errors"
	"testing"
	"time"

	"github.com/TobiSchelling/topicmap/internal/failure"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestOverallSingleWindow(t *testing.T) {
	ws, err := Windows(Overall, day("2020-01-01"), day("2020-03-15"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ws) != 1 {
		t.Fatalf("expected 1 window, got %d", len(ws))
	}
	if !ws[0].Start.Equal(day("2020-01-01")) || !ws[0].End.Equal(day("2020-03-15")) {
		t.Errorf("unexpected window %s", ws[0])
	}
}

func TestMonthlyJanuary2020(t *testing.T) {
	ws, err := Windows(Monthly, day("2020-01-01"), day("2020-02-01"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ws) != 1 {
		t.Fatalf("expected 1 window, got %d: %v", len(ws), ws)
	}
	if !ws[0].Start.Equal(day("2020-01-01")) || !ws[0].End.Equal(day("2020-02-01")) {
		t.Errorf("unexpected window %s", ws[0])
	}
}

func TestWeeklyJanuary2020(t *testing.T) {
	ws, err := Windows(Weekly, day("2020-01-01"), day("2020-02-01"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2020-01-01 is a Wednesday; the Monday before is 2019-12-30.
	want := []string{"2019-12-30", "2020-01-06", "2020-01-13", "2020-01-20", "2020-01-27"}
	if len(ws) != len(want) {
		t.Fatalf("expected %d windows, got %d: %v", len(want), len(ws), ws)
	}
	for i, w := range ws {
		if !w.Start.Equal(day(want[i])) {
			t.Errorf("window %d: expected start %s, got %s", i, want[i], w.Start.Format("2006-01-02"))
		}
		if w.End.Sub(w.Start) != 7*24*time.Hour {
			t.Errorf("window %d: expected 7 day window, got %s", i, w.End.Sub(w.Start))
		}
	}
}

func TestMonthlyVariableLengths(t *testing.T) {
	ws, err := Windows(Monthly, day("2020-01-15"), day("2020-05-02"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2020-01-01", "2020-02-01", "2020-03-01", "2020-04-01", "2020-05-01"}
	if len(ws) != len(want) {
		t.Fatalf("expected %d windows, got %d: %v", len(want), len(ws), ws)
	}
	for i, w := range ws {
		if !w.Start.Equal(day(want[i])) {
			t.Errorf("window %d: expected %s, got %s", i, want[i], w.Start.Format("2006-01-02"))
		}
	}
	if !ws[len(ws)-1].End.Equal(day("2020-06-01")) {
		t.Errorf("last window should run past end, got %s", ws[len(ws)-1])
	}
}

func TestWindowsContiguousAndCovering(t *testing.T) {
	ranges := [][2]string{
		{"2019-12-31", "2020-01-01"},
		{"2020-02-10", "2020-02-29"},
		{"2021-03-01", "2021-12-31"},
		{"2016-11-07", "2017-01-02"},
	}
	for _, r := range ranges {
		start, end := day(r[0]), day(r[1])
		for _, kind := range []Kind{Overall, Weekly, Monthly} {
			ws, err := Windows(kind, start, end, nil)
			if err != nil {
				t.Fatalf("%s %v: unexpected error: %v", kind, r, err)
			}
			if len(ws) == 0 {
				t.Fatalf("%s %v: no windows", kind, r)
			}
			if ws[0].Start.After(start) {
				t.Errorf("%s %v: first window starts after range start", kind, r)
			}
			if ws[len(ws)-1].End.Before(end) {
				t.Errorf("%s %v: last window ends before range end", kind, r)
			}
			for i := 1; i < len(ws); i++ {
				if !ws[i].Start.Equal(ws[i-1].End) {
					t.Errorf("%s %v: gap or overlap between %s and %s", kind, r, ws[i-1], ws[i])
				}
			}
			for _, w := range ws {
				switch kind {
				case Weekly:
					if w.Start.Weekday() != time.Monday {
						t.Errorf("weekly window %s does not start on Monday", w)
					}
				case Monthly:
					if w.Start.Day() != 1 {
						t.Errorf("monthly window %s does not start on the 1st", w)
					}
				}
			}
		}
	}
}

func TestCustomWindowsSorted(t *testing.T) {
	custom := []Window{
		{Start: day("2020-03-01"), End: day("2020-04-01")},
		{Start: day("2020-01-01"), End: day("2020-01-10")},
	}
	ws, err := Windows(Custom, day("2020-01-01"), day("2020-06-01"), custom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ws) != 2 || !ws[0].Start.Equal(day("2020-01-01")) {
		t.Errorf("expected custom windows sorted by start, got %v", ws)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("weekly"); err != nil || k != Weekly {
		t.Errorf("expected weekly, got %q (%v)", k, err)
	}
	_, err := ParseKind("daily")
	var ce *failure.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestContainsInclusiveBoundary(t *testing.T) {
	w := Window{Start: day("2020-01-01"), End: day("2020-01-08")}
	if !w.ContainsInclusive(day("2020-01-08").Add(-time.Second)) {
		t.Error("expected end-1s to be inside")
	}
	if w.ContainsInclusive(day("2020-01-08")) {
		t.Error("expected end to be outside")
	}
	if !w.ContainsInclusive(day("2020-01-01")) {
		t.Error("expected start to be inside")
	}
}
