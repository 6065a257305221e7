package statement_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
)

func d(s string) statement.Date { return statement.MustDate(s) }

func period(start, end string) statement.Period {
	return statement.Period{Start: d(start), End: d(end)}
}

// =============================================================================
// PERIOD ARITHMETIC
// =============================================================================

func TestPeriod_ContainsAndOverlaps(t *testing.T) {
	p := period("2024-03-01", "2024-03-31")

	assert.True(t, p.Contains(d("2024-03-01")))
	assert.True(t, p.Contains(d("2024-03-31")))
	assert.False(t, p.Contains(d("2024-02-29")))
	assert.False(t, p.Contains(d("2024-04-01")))

	assert.True(t, p.Overlaps(period("2024-03-31", "2024-04-15")))
	assert.True(t, p.Overlaps(period("2024-02-01", "2024-03-01")))
	assert.False(t, p.Overlaps(period("2024-04-01", "2024-04-30")))
}

func TestPeriod_Valid(t *testing.T) {
	assert.True(t, period("2024-03-01", "2024-03-31").Valid())
	assert.True(t, period("2024-03-01", "2024-03-01").Valid())
	assert.False(t, period("2024-03-31", "2024-03-01").Valid())
}

// =============================================================================
// CADENCE TAGS
// =============================================================================

func TestHasScheduleTag_CaseInsensitive(t *testing.T) {
	tags := []string{"beachfront", " weekly ", "premium"}
	assert.True(t, statement.HasScheduleTag(tags, statement.TagWeekly))
	assert.False(t, statement.HasScheduleTag(tags, statement.TagMonthly))
}

func TestDuePeriodFor_Weekly(t *testing.T) {
	// 2024-03-11 is a Monday
	monday := d("2024-03-11")
	require.Equal(t, time.Monday, monday.Weekday())

	p := statement.DuePeriodFor(statement.TagWeekly, monday)
	require.NotNil(t, p)
	assert.Equal(t, "2024-03-04", p.Start.String())
	assert.Equal(t, "2024-03-10", p.End.String())

	// Any other weekday is not a trigger day.
	assert.Nil(t, statement.DuePeriodFor(statement.TagWeekly, d("2024-03-12")))
	assert.Nil(t, statement.DuePeriodFor(statement.TagWeekly, d("2024-03-10")))
}

func TestDuePeriodFor_BiweeklyParity(t *testing.T) {
	// 2024-03-11 is Monday of ISO week 11 (odd): B fires, A does not.
	oddMonday := d("2024-03-11")
	require.Equal(t, 11, oddMonday.ISOWeek())

	assert.Nil(t, statement.DuePeriodFor(statement.TagBiweeklyA, oddMonday))
	p := statement.DuePeriodFor(statement.TagBiweeklyB, oddMonday)
	require.NotNil(t, p)
	assert.Equal(t, "2024-02-26", p.Start.String())
	assert.Equal(t, "2024-03-10", p.End.String())

	// 2024-03-18 is Monday of ISO week 12 (even): A fires, B does not.
	evenMonday := d("2024-03-18")
	require.Equal(t, 12, evenMonday.ISOWeek())

	assert.Nil(t, statement.DuePeriodFor(statement.TagBiweeklyB, evenMonday))
	p = statement.DuePeriodFor(statement.TagBiweeklyA, evenMonday)
	require.NotNil(t, p)
	assert.Equal(t, "2024-03-04", p.Start.String())
	assert.Equal(t, "2024-03-17", p.End.String())
}

func TestDuePeriodFor_Monthly(t *testing.T) {
	p := statement.DuePeriodFor(statement.TagMonthly, d("2024-03-01"))
	require.NotNil(t, p)
	assert.Equal(t, "2024-02-01", p.Start.String())
	assert.Equal(t, "2024-02-29", p.End.String()) // leap year

	assert.Nil(t, statement.DuePeriodFor(statement.TagMonthly, d("2024-03-02")))
}

func TestDuePeriodFor_UnknownTag(t *testing.T) {
	assert.Nil(t, statement.DuePeriodFor("beachfront", d("2024-03-11")))
}

// =============================================================================
// RESERVATION CLASSIFICATION
// =============================================================================

func TestClassifyReservation_CheckoutMode(t *testing.T) {
	march := period("2024-03-01", "2024-03-31")

	// Checkout inside the period: full amount regardless of check-in.
	c := statement.ClassifyReservation(d("2024-02-20"), d("2024-03-05"), march, statement.CalcCheckout)
	assert.True(t, c.InPeriod)
	assert.True(t, c.Proration.Equal(decimal.NewFromInt(1)))

	// Checkout after the period: excluded even though nights fall inside.
	c = statement.ClassifyReservation(d("2024-03-28"), d("2024-04-02"), march, statement.CalcCheckout)
	assert.False(t, c.InPeriod)
}

func TestClassifyReservation_CalendarProration(t *testing.T) {
	march := period("2024-03-01", "2024-03-31")
	april := period("2024-04-01", "2024-04-30")

	// 10-night stay straddling the boundary: Mar 28 check-in, Apr 7 checkout.
	checkIn, checkOut := d("2024-03-28"), d("2024-04-07")

	inMarch := statement.ClassifyReservation(checkIn, checkOut, march, statement.CalcCalendar)
	require.True(t, inMarch.InPeriod)
	assert.True(t, inMarch.Proration.Equal(decimal.RequireFromString("0.4")),
		"4 of 10 nights in March, got %s", inMarch.Proration)

	inApril := statement.ClassifyReservation(checkIn, checkOut, april, statement.CalcCalendar)
	require.True(t, inApril.InPeriod)
	assert.True(t, inApril.Proration.Equal(decimal.RequireFromString("0.6")),
		"6 of 10 nights in April, got %s", inApril.Proration)

	// Boundary-sum property: the two factors sum to exactly 1.
	sum := inMarch.Proration.Add(inApril.Proration)
	assert.True(t, sum.Equal(decimal.NewFromInt(1)), "factors must sum to 1, got %s", sum)
}

func TestClassifyReservation_CalendarWhollyInside(t *testing.T) {
	march := period("2024-03-01", "2024-03-31")
	c := statement.ClassifyReservation(d("2024-03-10"), d("2024-03-15"), march, statement.CalcCalendar)
	require.True(t, c.InPeriod)
	assert.True(t, c.Proration.Equal(decimal.NewFromInt(1)))
}

func TestClassifyReservation_CalendarNoOverlap(t *testing.T) {
	march := period("2024-03-01", "2024-03-31")

	// Checkout day itself is not a night: a stay ending Mar 1 has its last
	// night on Feb 29 and is outside March entirely.
	c := statement.ClassifyReservation(d("2024-02-27"), d("2024-03-01"), march, statement.CalcCalendar)
	assert.False(t, c.InPeriod)

	// Zero-night record allocates nothing.
	c = statement.ClassifyReservation(d("2024-03-10"), d("2024-03-10"), march, statement.CalcCalendar)
	assert.False(t, c.InPeriod)
}
