package engine

import (
	"fmt"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// dueOccurrence is one (period, date) pair a rule owes within a window.
type dueOccurrence struct {
	Key string
	Due time.Time
}

// runWindow intersects the rule's own lifetime with [watermark, today].
// ok is false when the intersection is empty, meaning the rule owes
// nothing this run.
func runWindow(r ledger.Rule, watermark, today time.Time) (from, to time.Time, ok bool) {
	from = ledger.MaxDate(watermark, r.Start)
	to = today
	if r.End != nil {
		to = ledger.MinDate(to, *r.End)
	}
	return from, to, !from.After(to)
}

// dueOccurrences enumerates the (key, due) pairs of the periods touching
// [from, to], oldest first. A period is owed as soon as any of its days
// enters the window, so a due date may land outside the window itself: a
// day-31 rule is due for March the moment March begins. The one hard cap
// is the rule's end date; a due date past it is dropped, not clamped.
// Cadences the engine does not understand yield nothing.
func dueOccurrences(r ledger.Rule, from, to time.Time) []dueOccurrence {
	var due []dueOccurrence
	switch r.Cadence {
	case ledger.CadenceMonthly:
		due = monthlyDue(r, from, to)
	case ledger.CadenceWeekly:
		due = weeklyDue(r, from, to)
	case ledger.CadenceYearly:
		due = yearlyDue(r, from, to)
	}
	if r.End == nil {
		return due
	}
	kept := due[:0]
	for _, occ := range due {
		if !occ.Due.After(*r.End) {
			kept = append(kept, occ)
		}
	}
	return kept
}

// monthlyDue walks the months from from's through to's, inclusive. The
// charge day is the rule's day-of-month clamped into each month, so a
// day-31 rule charges Feb 29 in a leap year and Feb 28 otherwise.
func monthlyDue(r ledger.Rule, from, to time.Time) []dueOccurrence {
	day := r.DayOfMonth
	if day < 1 {
		day = ledger.DefaultDayOfMonth
	}

	var due []dueOccurrence
	year, month := from.Year(), from.Month()
	for year < to.Year() || (year == to.Year() && month <= to.Month()) {
		due = append(due, dueOccurrence{
			Key: fmt.Sprintf("%04d-%02d", year, int(month)),
			Due: time.Date(year, month, ledger.ClampDay(year, month, day), 0, 0, 0, 0, time.UTC),
		})
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return due
}

// weeklyDue walks the ISO weeks whose Monday falls in [Monday of from's
// week, to]. Weekday numbering is Monday=0 .. Sunday=6; out-of-range
// selectors clamp to the nearest end instead of shifting the due date
// into another week.
func weeklyDue(r ledger.Rule, from, to time.Time) []dueOccurrence {
	weekday := ledger.DefaultWeekday
	if r.Weekday != nil {
		weekday = ledger.ClampWeekday(*r.Weekday)
	}

	var due []dueOccurrence
	monday := from.AddDate(0, 0, -mondayOffset(from))
	for cur := monday; !cur.After(to); cur = cur.AddDate(0, 0, 7) {
		isoYear, isoWeek := cur.ISOWeek()
		key, d := weekOccurrence(isoYear, isoWeek, weekday)
		if key == "" {
			continue
		}
		due = append(due, dueOccurrence{Key: key, Due: d})
	}
	return due
}

// yearlyDue charges once per calendar year on the anniversary of the
// rule's start date, with the day clamped for non-leap Februaries.
func yearlyDue(r ledger.Rule, from, to time.Time) []dueOccurrence {
	month := r.Start.Month()
	day := r.Start.Day()

	var due []dueOccurrence
	for year := from.Year(); year <= to.Year(); year++ {
		due = append(due, dueOccurrence{
			Key: fmt.Sprintf("%04d", year),
			Due: time.Date(year, month, ledger.ClampDay(year, month, day), 0, 0, 0, 0, time.UTC),
		})
	}
	return due
}

// weekOccurrence resolves an ISO (year, week, weekday) triple to its
// period key and date. Returns an empty key for a week number the year
// does not have, such as week 53 of a 52-week year.
func weekOccurrence(isoYear, isoWeek, weekday int) (string, time.Time) {
	monday := mondayOfISOWeek(isoYear, isoWeek)
	if y, w := monday.ISOWeek(); y != isoYear || w != isoWeek {
		return "", time.Time{}
	}
	return fmt.Sprintf("%04d-W%02d", isoYear, isoWeek), monday.AddDate(0, 0, weekday)
}

// mondayOfISOWeek returns the Monday of the given ISO week. January 4 is
// always inside week 1, which anchors the computation.
func mondayOfISOWeek(isoYear, isoWeek int) time.Time {
	jan4 := time.Date(isoYear, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekOneMonday := jan4.AddDate(0, 0, -mondayOffset(jan4))
	return weekOneMonday.AddDate(0, 0, (isoWeek-1)*7)
}

// mondayOffset returns how many days t lies after its week's Monday.
// time.Weekday counts Sunday=0; this converts to Monday-based counting.
func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// NextCharge returns the next date on or after today (or the rule's
// start, for rules that have not begun) that the rule is due, derived
// from the rule definition alone. ok is false when the rule has no such
// charge: its end date has passed or its cadence is not supported.
func NextCharge(r ledger.Rule, today time.Time) (date time.Time, ok bool) {
	today = ledger.DateOf(today)
	from := ledger.MaxDate(today, r.Start)
	// Two years covers the widest possible gap between consecutive
	// charges of any supported cadence.
	to := from.AddDate(2, 0, 7)
	if r.End != nil {
		if r.End.Before(from) {
			return time.Time{}, false
		}
		to = ledger.MinDate(to, *r.End)
	}

	for _, occ := range dueOccurrences(r, from, to) {
		if !occ.Due.Before(from) {
			return occ.Due, true
		}
	}
	return time.Time{}, false
}
