package statement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD - Inclusive date range for a statement
// =============================================================================

type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains returns true if the date falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps returns true if the two inclusive ranges share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Valid reports whether the range is well-formed (end not before start).
func (p Period) Valid() bool { return p.Start.BeforeOrEqual(p.End) }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// CADENCE TAGS - Named recurring schedules
// =============================================================================

// A cadence tag on a listing or listing group opts it into scheduled draft
// generation. The cadence is derived from the tag name.
const (
	TagWeekly    = "WEEKLY"
	TagBiweeklyA = "BI-WEEKLY A"
	TagBiweeklyB = "BI-WEEKLY B"
	TagMonthly   = "MONTHLY"
)

// ScheduleTags lists every cadence tag in evaluation order.
func ScheduleTags() []string {
	return []string{TagWeekly, TagBiweeklyA, TagBiweeklyB, TagMonthly}
}

// HasScheduleTag reports whether any of the given tags matches the cadence
// tag, case-insensitively.
func HasScheduleTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// DuePeriodFor resolves the canonical period a cadence tag should generate
// for when evaluated on asOf. It returns nil when asOf is not the tag's
// trigger day.
//
// WEEKLY fires every Monday for the prior Monday..Sunday week. The two
// bi-weekly tags fire on alternating Mondays, parity chosen by ISO week
// number so A and B never collide. MONTHLY fires on the first of the month
// for the whole prior month.
func DuePeriodFor(tag string, asOf Date) *Period {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case TagWeekly:
		if asOf.Weekday() != time.Monday {
			return nil
		}
		return &Period{Start: asOf.AddDays(-7), End: asOf.AddDays(-1)}

	case TagBiweeklyA:
		if asOf.Weekday() != time.Monday || asOf.ISOWeek()%2 != 0 {
			return nil
		}
		return &Period{Start: asOf.AddDays(-14), End: asOf.AddDays(-1)}

	case TagBiweeklyB:
		if asOf.Weekday() != time.Monday || asOf.ISOWeek()%2 != 1 {
			return nil
		}
		return &Period{Start: asOf.AddDays(-14), End: asOf.AddDays(-1)}

	case TagMonthly:
		if asOf.Day() != 1 {
			return nil
		}
		prev := asOf.AddMonths(-1)
		return &Period{
			Start: StartOfMonth(prev.Year(), prev.Month()),
			End:   EndOfMonth(prev.Year(), prev.Month()),
		}

	default:
		return nil
	}
}

// =============================================================================
// RESERVATION CLASSIFICATION
// =============================================================================

// Classification answers whether a reservation belongs to a period under a
// calculation mode, and with what proration factor.
type Classification struct {
	InPeriod bool

	// Proration is nights-inside-period / total-nights. Always 1 for
	// checkout mode and for stays wholly inside a calendar period.
	Proration decimal.Decimal
}

// ClassifyReservation classifies a stay against a period.
//
// Checkout mode: in-period iff the checkout date falls within the period,
// full amount. Calendar mode: in-period iff the half-open night range
// [checkIn, checkOut) overlaps the period at all, prorated by the nights
// inside. A stay wholly outside the period is excluded in both modes.
func ClassifyReservation(checkIn, checkOut Date, period Period, mode CalculationType) Classification {
	switch mode {
	case CalcCheckout:
		if period.Contains(checkOut) {
			return Classification{InPeriod: true, Proration: decimal.NewFromInt(1)}
		}
		return Classification{Proration: decimal.Zero}

	case CalcCalendar:
		total := DaysBetween(checkIn, checkOut)
		if total <= 0 {
			return Classification{Proration: decimal.Zero}
		}
		inside := nightsInside(checkIn, checkOut, period)
		if inside <= 0 {
			return Classification{Proration: decimal.Zero}
		}
		factor := decimal.NewFromInt(int64(inside)).Div(decimal.NewFromInt(int64(total)))
		return Classification{InPeriod: true, Proration: factor}

	default:
		return Classification{Proration: decimal.Zero}
	}
}

// nightsInside counts the nights of [checkIn, checkOut) spent inside the
// inclusive period. The night of day D belongs to D.
func nightsInside(checkIn, checkOut Date, period Period) int {
	first := checkIn
	if period.Start.After(first) {
		first = period.Start
	}
	last := checkOut.AddDays(-1) // last night of the stay
	if period.End.Before(last) {
		last = period.End
	}
	if last.Before(first) {
		return 0
	}
	return DaysBetween(first, last) + 1
}
