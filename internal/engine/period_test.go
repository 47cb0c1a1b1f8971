package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Test helper to create a monthly rule
func makeMonthlyRule(start time.Time, dayOfMonth int) ledger.Rule {
	return ledger.Rule{
		ID:         1,
		Name:       "Rent",
		Amount:     1200,
		Cadence:    ledger.CadenceMonthly,
		Start:      start,
		DayOfMonth: dayOfMonth,
		Active:     true,
	}
}

// Test helper to create a weekly rule
func makeWeeklyRule(start time.Time, weekday *int) ledger.Rule {
	return ledger.Rule{
		ID:      2,
		Name:    "Groceries",
		Amount:  300,
		Cadence: ledger.CadenceWeekly,
		Start:   start,
		Weekday: weekday,
		Active:  true,
	}
}

func intPtr(v int) *int { return &v }

func TestRunWindow_BoundedByRuleStart(t *testing.T) {
	r := makeMonthlyRule(date(2024, time.February, 10), 1)

	// Zero watermark: the rule's own start bounds the window
	from, to, ok := runWindow(r, time.Time{}, date(2024, time.March, 15))
	require.True(t, ok)
	assert.Equal(t, date(2024, time.February, 10), from)
	assert.Equal(t, date(2024, time.March, 15), to)
}

func TestRunWindow_BoundedByWatermark(t *testing.T) {
	r := makeMonthlyRule(date(2024, time.January, 1), 1)

	from, to, ok := runWindow(r, date(2024, time.March, 1), date(2024, time.March, 15))
	require.True(t, ok)
	assert.Equal(t, date(2024, time.March, 1), from)
	assert.Equal(t, date(2024, time.March, 15), to)
}

func TestRunWindow_EndDateCapsWindow(t *testing.T) {
	end := date(2024, time.February, 20)
	r := makeMonthlyRule(date(2024, time.January, 1), 1)
	r.End = &end

	_, to, ok := runWindow(r, time.Time{}, date(2024, time.March, 15))
	require.True(t, ok)
	assert.Equal(t, end, to)
}

func TestRunWindow_EmptyWhenRuleOver(t *testing.T) {
	end := date(2024, time.January, 31)
	r := makeMonthlyRule(date(2024, time.January, 1), 1)
	r.End = &end

	// Watermark already past the rule's end
	_, _, ok := runWindow(r, date(2024, time.February, 15), date(2024, time.March, 15))
	assert.False(t, ok)
}

func TestRunWindow_EmptyWhenRuleNotStarted(t *testing.T) {
	r := makeMonthlyRule(date(2024, time.June, 1), 1)

	_, _, ok := runWindow(r, time.Time{}, date(2024, time.March, 15))
	assert.False(t, ok)
}

func TestMonthlyDue_ClampsShortMonths(t *testing.T) {
	r := makeMonthlyRule(date(2024, time.January, 1), 31)

	due := monthlyDue(r, date(2024, time.January, 1), date(2024, time.March, 15))

	require.Len(t, due, 3)
	assert.Equal(t, "2024-01", due[0].Key)
	assert.Equal(t, date(2024, time.January, 31), due[0].Due)
	assert.Equal(t, "2024-02", due[1].Key)
	assert.Equal(t, date(2024, time.February, 29), due[1].Due, "2024 is a leap year")
	// March is owed as soon as the window touches it, even though the
	// 31st is past the window end
	assert.Equal(t, "2024-03", due[2].Key)
	assert.Equal(t, date(2024, time.March, 31), due[2].Due)
}

func TestMonthlyDue_NonLeapFebruary(t *testing.T) {
	r := makeMonthlyRule(date(2025, time.January, 1), 30)

	due := monthlyDue(r, date(2025, time.February, 1), date(2025, time.February, 28))

	require.Len(t, due, 1)
	assert.Equal(t, date(2025, time.February, 28), due[0].Due)
}

func TestMonthlyDue_DefaultsToFirstOfMonth(t *testing.T) {
	r := makeMonthlyRule(date(2024, time.January, 1), 0)

	due := monthlyDue(r, date(2024, time.January, 1), date(2024, time.January, 31))

	require.Len(t, due, 1)
	assert.Equal(t, date(2024, time.January, 1), due[0].Due)
}

func TestMonthlyDue_CrossesYearBoundary(t *testing.T) {
	r := makeMonthlyRule(date(2024, time.November, 1), 15)

	due := monthlyDue(r, date(2024, time.November, 1), date(2025, time.February, 1))

	require.Len(t, due, 4)
	assert.Equal(t, "2024-11", due[0].Key)
	assert.Equal(t, "2024-12", due[1].Key)
	assert.Equal(t, "2025-01", due[2].Key)
	assert.Equal(t, "2025-02", due[3].Key)
}

func TestWeeklyDue_SundaysOfAugust2025(t *testing.T) {
	r := makeWeeklyRule(date(2025, time.August, 1), intPtr(ledger.WeekdaySunday))

	due := weeklyDue(r, date(2025, time.August, 1), date(2025, time.August, 31))

	require.Len(t, due, 5)
	wantKeys := []string{"2025-W31", "2025-W32", "2025-W33", "2025-W34", "2025-W35"}
	wantDues := []time.Time{
		date(2025, time.August, 3),
		date(2025, time.August, 10),
		date(2025, time.August, 17),
		date(2025, time.August, 24),
		date(2025, time.August, 31),
	}
	for i := range due {
		assert.Equal(t, wantKeys[i], due[i].Key)
		assert.Equal(t, wantDues[i], due[i].Due)
		assert.Equal(t, time.Sunday, due[i].Due.Weekday())
	}
}

func TestWeeklyDue_DefaultsToSunday(t *testing.T) {
	r := makeWeeklyRule(date(2025, time.August, 4), nil)

	due := weeklyDue(r, date(2025, time.August, 4), date(2025, time.August, 10))

	require.Len(t, due, 1)
	assert.Equal(t, date(2025, time.August, 10), due[0].Due)
}

func TestWeeklyDue_MondayRuleBackfillsWeekStart(t *testing.T) {
	// Window opens on a Friday; the week's Monday is still that week's
	// due day and gets materialized retroactively
	r := makeWeeklyRule(date(2025, time.August, 1), intPtr(ledger.WeekdayMonday))

	due := weeklyDue(r, date(2025, time.August, 1), date(2025, time.August, 5))

	require.Len(t, due, 2)
	assert.Equal(t, date(2025, time.July, 28), due[0].Due)
	assert.Equal(t, "2025-W31", due[0].Key)
	assert.Equal(t, date(2025, time.August, 4), due[1].Due)
	assert.Equal(t, "2025-W32", due[1].Key)
}

func TestWeeklyDue_WeekdayClampedIntoRange(t *testing.T) {
	// One ISO week: Monday 2025-08-04 through Sunday 2025-08-10.
	testCases := []struct {
		weekday int
		want    time.Time
	}{
		{-1, date(2025, time.August, 4)},
		{7, date(2025, time.August, 10)},
		{42, date(2025, time.August, 10)},
	}

	for _, tc := range testCases {
		r := makeWeeklyRule(date(2025, time.August, 4), intPtr(tc.weekday))
		due := weeklyDue(r, date(2025, time.August, 4), date(2025, time.August, 10))
		require.Len(t, due, 1, "weekday %d", tc.weekday)
		assert.Equal(t, tc.want, due[0].Due, "weekday %d", tc.weekday)
	}
}

func TestWeeklyDue_YearBoundaryKeys(t *testing.T) {
	// ISO week 1 of 2025 starts Monday 2024-12-30; days before it still
	// belong to 2024-W52
	r := makeWeeklyRule(date(2024, time.December, 23), intPtr(ledger.WeekdayMonday))

	due := weeklyDue(r, date(2024, time.December, 23), date(2025, time.January, 6))

	require.Len(t, due, 3)
	assert.Equal(t, "2024-W52", due[0].Key)
	assert.Equal(t, date(2024, time.December, 23), due[0].Due)
	assert.Equal(t, "2025-W01", due[1].Key)
	assert.Equal(t, date(2024, time.December, 30), due[1].Due)
	assert.Equal(t, "2025-W02", due[2].Key)
	assert.Equal(t, date(2025, time.January, 6), due[2].Due)
}

func TestYearlyDue_AnniversaryOfStart(t *testing.T) {
	r := ledger.Rule{
		ID:      3,
		Name:    "Insurance",
		Amount:  900,
		Cadence: ledger.CadenceYearly,
		Start:   date(2022, time.June, 15),
		Active:  true,
	}

	due := yearlyDue(r, date(2022, time.June, 15), date(2024, time.December, 31))

	require.Len(t, due, 3)
	assert.Equal(t, "2022", due[0].Key)
	assert.Equal(t, date(2022, time.June, 15), due[0].Due)
	assert.Equal(t, "2023", due[1].Key)
	assert.Equal(t, date(2023, time.June, 15), due[1].Due)
	assert.Equal(t, "2024", due[2].Key)
	assert.Equal(t, date(2024, time.June, 15), due[2].Due)
}

func TestYearlyDue_LeapDayClamped(t *testing.T) {
	r := ledger.Rule{
		ID:      3,
		Cadence: ledger.CadenceYearly,
		Start:   date(2024, time.February, 29),
		Active:  true,
	}

	due := yearlyDue(r, date(2024, time.February, 29), date(2026, time.December, 31))

	require.Len(t, due, 3)
	assert.Equal(t, date(2024, time.February, 29), due[0].Due)
	assert.Equal(t, date(2025, time.February, 28), due[1].Due)
	assert.Equal(t, date(2026, time.February, 28), due[2].Due)
}

func TestDueOccurrences_EndDateCapsDueDates(t *testing.T) {
	// The window still touches March, but the March due date lands past
	// the rule's end and must be dropped, not clamped
	end := date(2024, time.March, 15)
	r := makeMonthlyRule(date(2024, time.January, 1), 31)
	r.End = &end

	due := dueOccurrences(r, date(2024, time.January, 1), end)

	require.Len(t, due, 2)
	assert.Equal(t, "2024-01", due[0].Key)
	assert.Equal(t, "2024-02", due[1].Key)
}

func TestDueOccurrences_UnsupportedCadence(t *testing.T) {
	r := ledger.Rule{
		ID:      4,
		Cadence: ledger.Cadence("daily"),
		Start:   date(2024, time.January, 1),
		Active:  true,
	}

	due := dueOccurrences(r, date(2024, time.January, 1), date(2024, time.March, 15))
	assert.Empty(t, due)
}

func TestWeekOccurrence_ValidWeek(t *testing.T) {
	key, due := weekOccurrence(2025, 31, ledger.WeekdaySunday)

	assert.Equal(t, "2025-W31", key)
	assert.Equal(t, date(2025, time.August, 3), due)
}

func TestWeekOccurrence_InvalidWeek(t *testing.T) {
	// 2025 has 52 ISO weeks; week 53 does not exist
	key, _ := weekOccurrence(2025, 53, ledger.WeekdayMonday)
	assert.Equal(t, "", key)

	// 2020 is a 53-week year
	key, due := weekOccurrence(2020, 53, ledger.WeekdayMonday)
	assert.Equal(t, "2020-W53", key)
	assert.Equal(t, date(2020, time.December, 28), due)
}

func TestMondayOfISOWeek(t *testing.T) {
	testCases := []struct {
		isoYear int
		isoWeek int
		want    time.Time
	}{
		{2024, 1, date(2024, time.January, 1)},
		{2025, 1, date(2024, time.December, 30)},
		{2026, 1, date(2025, time.December, 29)},
		{2025, 31, date(2025, time.July, 28)},
	}

	for _, tc := range testCases {
		got := mondayOfISOWeek(tc.isoYear, tc.isoWeek)
		assert.Equal(t, tc.want, got, "week %d-W%02d", tc.isoYear, tc.isoWeek)
		assert.Equal(t, time.Monday, got.Weekday())
	}
}

func TestNextCharge_Monthly(t *testing.T) {
	r := makeMonthlyRule(date(2024, time.January, 1), 20)

	// Before this month's charge day
	next, ok := NextCharge(r, date(2024, time.March, 15))
	require.True(t, ok)
	assert.Equal(t, date(2024, time.March, 20), next)

	// On the charge day itself
	next, ok = NextCharge(r, date(2024, time.March, 20))
	require.True(t, ok)
	assert.Equal(t, date(2024, time.March, 20), next)

	// Past it: rolls to next month
	next, ok = NextCharge(r, date(2024, time.March, 21))
	require.True(t, ok)
	assert.Equal(t, date(2024, time.April, 20), next)
}

func TestNextCharge_Weekly(t *testing.T) {
	r := makeWeeklyRule(date(2025, time.January, 1), intPtr(ledger.WeekdaySunday))

	// Wednesday: this week's Sunday is still ahead
	next, ok := NextCharge(r, date(2025, time.August, 6))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.August, 10), next)

	// Sunday itself
	next, ok = NextCharge(r, date(2025, time.August, 10))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.August, 10), next)
}

func TestNextCharge_Yearly(t *testing.T) {
	r := ledger.Rule{
		ID:      3,
		Cadence: ledger.CadenceYearly,
		Start:   date(2022, time.June, 15),
		Active:  true,
	}

	// This year's anniversary already passed
	next, ok := NextCharge(r, date(2025, time.August, 1))
	require.True(t, ok)
	assert.Equal(t, date(2026, time.June, 15), next)
}

func TestNextCharge_EndedRule(t *testing.T) {
	end := date(2025, time.January, 31)
	r := makeMonthlyRule(date(2024, time.January, 1), 1)
	r.End = &end

	_, ok := NextCharge(r, date(2025, time.August, 1))
	assert.False(t, ok)
}

func TestNextCharge_UnsupportedCadence(t *testing.T) {
	r := ledger.Rule{
		ID:      4,
		Cadence: ledger.Cadence("custom-cron"),
		Start:   date(2024, time.January, 1),
		Active:  true,
	}

	_, ok := NextCharge(r, date(2024, time.March, 15))
	assert.False(t, ok)
}

func TestNextCharge_FutureStart(t *testing.T) {
	r := makeMonthlyRule(date(2026, time.March, 10), 1)

	next, ok := NextCharge(r, date(2025, time.August, 1))
	require.True(t, ok)
	assert.Equal(t, date(2026, time.April, 1), next, "first due on or after the start date")
}
