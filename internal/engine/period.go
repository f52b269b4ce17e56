package engine

import (
	"fmt"
	"time"
)

// Span is the portion of a date range that falls inside one calendar
// month, mapped to that month's sheet. Start and End are inclusive.
type Span struct {
	Sheet string
	Start time.Time
	End   time.Time
}

// SheetName returns the calendar sheet name for a date, "yy年M月".
func SheetName(d time.Time) string {
	return fmt.Sprintf("%02d年%d月", d.Year()%100, int(d.Month()))
}

// SplitByPeriod decomposes an inclusive date range into maximal
// per-month spans, in order. The first span starts at start, the last
// ends at end. Shared by availability search, booking and cancellation
// so all three agree on month boundaries.
func SplitByPeriod(start, end time.Time) []Span {
	var spans []Span

	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	for !month.After(end) {
		next := month.AddDate(0, 1, 0)

		s := start
		if month.After(start) {
			s = month
		}
		e := end
		if lastDay := next.AddDate(0, 0, -1); lastDay.Before(end) {
			e = lastDay
		}

		spans = append(spans, Span{Sheet: SheetName(month), Start: s, End: e})
		month = next
	}

	return spans
}
