/*
fees.go - Fee calculation and the single totals recompute path

PURPOSE:
  Derives PM commission, tech fee, insurance fee and the owner payout from
  a statement's current visible item and reservation set. ComputeTotals is
  the ONLY place totals are produced: the builder calls it after assembly
  and the edit engine calls it after every mutation, so a stored statement's
  totals are always reproducible from its content.

PAYOUT FORMULA:
  ownerPayout = totalRevenue - totalExpenses(visible) - pmCommission
              - techFee - insuranceFee

  For fully cohosted statements the owner already collected the revenue on
  the platform; the statement still displays revenue and expenses for
  transparency, but the payout line reflects only the commission owed to
  the manager (tech/insurance fees are not certain for cohost and are
  zeroed on the payout side).
*/
package statement

import "github.com/shopspring/decimal"

// FeeConfig carries the process-wide fixed fees. Per-listing commission
// percentages travel on each ReservationRef instead, so combined statements
// can mix listings with different rates.
type FeeConfig struct {
	TechFee      decimal.Decimal
	InsuranceFee decimal.Decimal
}

// ComputeTotals recomputes every derived total from the statement's visible
// line items and its reservation set. Idempotent: calling it twice on an
// unchanged statement yields identical totals.
func ComputeTotals(st *Statement, fees FeeConfig) Totals {
	period := st.Period()
	rev := allocateRevenue(st.Reservations, period, st.CalculationType, st.CleaningFeePassThrough)

	expenses := decimal.Zero
	for _, item := range st.VisibleItems() {
		expenses = expenses.Add(item.Amount)
	}

	totals := Totals{
		TotalRevenue:  roundCents(rev.revenue),
		TotalExpenses: roundCents(expenses),
		PMCommission:  roundCents(rev.commission),
		CleaningFees:  roundCents(rev.cleaning),
		TechFee:       decimal.Zero,
		InsuranceFee:  decimal.Zero,
	}

	// Fixed fees apply once per statement, and only when the period had
	// qualifying activity at all.
	if st.HasActivity() && !st.CohostOnAirbnb {
		totals.TechFee = roundCents(fees.TechFee)
		totals.InsuranceFee = roundCents(fees.InsuranceFee)
	}

	if st.CohostOnAirbnb {
		totals.OwnerPayout = totals.PMCommission.Neg()
	} else {
		totals.OwnerPayout = totals.TotalRevenue.
			Sub(totals.TotalExpenses).
			Sub(totals.PMCommission).
			Sub(totals.TechFee).
			Sub(totals.InsuranceFee)
	}
	return totals
}

// Recompute refreshes the statement's stored totals in place.
func Recompute(st *Statement, fees FeeConfig) {
	st.Totals = ComputeTotals(st, fees)
}

// RecomputeCleaningAggregate refreshes only the cleaning-fee aggregate.
// Cleaning-fee-only edits do not retrigger the full statement recompute.
func RecomputeCleaningAggregate(st *Statement) {
	cleaning := decimal.Zero
	for _, r := range st.Reservations {
		if r.Status == ReservationActive || r.IsCustom {
			cleaning = cleaning.Add(r.CleaningFee)
		}
	}
	st.Totals.CleaningFees = roundCents(cleaning)
}
