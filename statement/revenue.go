/*
revenue.go - Revenue allocation under checkout and calendar accounting

PURPOSE:
  Converts reservations overlapping a period into recognized revenue.
  Checkout mode recognizes the full gross amount of stays checking out in
  the period. Calendar mode prorates by nights inside the period.

ROUNDING:
  Per-reservation contributions stay unrounded; sums are rounded to cents
  once, in fees.go, to avoid compounding rounding error.

COHOST:
  A cohosted listing's reservation revenue is collected by the owner
  directly, so it never enters TotalRevenue. It still enters the commission
  base: the manager's commission is owed on the portion the owner collected.
*/
package statement

import "github.com/shopspring/decimal"

// QualifyingReservations selects the source reservations that belong to the
// period under the given mode and converts them into statement refs.
// Cancelled reservations never qualify here; they can only be attached
// explicitly through an edit.
func QualifyingReservations(src []SourceReservation, period Period, mode CalculationType, listing Listing) []ReservationRef {
	var refs []ReservationRef
	for _, r := range src {
		if r.Status != ReservationActive {
			continue
		}
		c := ClassifyReservation(r.CheckIn, r.CheckOut, period, mode)
		if !c.InPeriod {
			continue
		}
		refs = append(refs, ReservationRef{
			SourceID:       r.ID,
			PropertyID:     r.PropertyID,
			GuestName:      r.GuestName,
			CheckIn:        r.CheckIn,
			CheckOut:       r.CheckOut,
			GrossAmount:    r.GrossAmount,
			CleaningFee:    r.CleaningFee,
			Status:         r.Status,
			CohostExcluded: listing.CohostOnAirbnb,
			PMFeePercent:   listing.EffectivePMFee(),
		})
	}
	return refs
}

// AllocatedAmount returns the revenue a reservation contributes to the
// statement period, unrounded.
//
// Custom reservations and explicitly added cancelled reservations carry
// caller-supplied amounts and bypass allocation: they contribute their
// literal gross amount.
func AllocatedAmount(r ReservationRef, period Period, mode CalculationType) decimal.Decimal {
	if r.IsCustom || r.Status == ReservationCancelled {
		return r.GrossAmount
	}
	c := ClassifyReservation(r.CheckIn, r.CheckOut, period, mode)
	if !c.InPeriod {
		return decimal.Zero
	}
	return r.GrossAmount.Mul(c.Proration)
}

// revenueTotals carries the unrounded revenue-side sums for a statement.
type revenueTotals struct {
	revenue        decimal.Decimal // excludes cohost-excluded reservations
	commissionBase decimal.Decimal // weighted by each reservation's pm%
	commission     decimal.Decimal
	cleaning       decimal.Decimal
}

// allocateRevenue walks a statement's reservation set and accumulates the
// revenue-side totals. This is the single allocation path used both at
// build time and on every edit recompute, which keeps stored totals
// idempotently re-derivable.
func allocateRevenue(reservations []ReservationRef, period Period, mode CalculationType, passThrough bool) revenueTotals {
	var t revenueTotals
	t.revenue = decimal.Zero
	t.commissionBase = decimal.Zero
	t.commission = decimal.Zero
	t.cleaning = decimal.Zero

	hundred := decimal.NewFromInt(100)

	for _, r := range reservations {
		allocated := AllocatedAmount(r, period, mode)
		if !r.CohostExcluded {
			t.revenue = t.revenue.Add(allocated)
		}

		base := allocated
		if passThrough {
			// Cleaning is passed through to the owner unmodified and is
			// excluded from the commission base.
			base = base.Sub(cleaningShare(r, period, mode))
		}
		t.commissionBase = t.commissionBase.Add(base)
		t.commission = t.commission.Add(base.Mul(r.PMFeePercent).Div(hundred))

		if r.Status == ReservationActive || r.IsCustom {
			t.cleaning = t.cleaning.Add(r.CleaningFee)
		}
	}
	return t
}

// cleaningShare is the portion of a reservation's cleaning fee recognized
// in the period. It follows the same allocation as the gross amount so the
// commission base never goes negative on straddling stays.
func cleaningShare(r ReservationRef, period Period, mode CalculationType) decimal.Decimal {
	if r.IsCustom || r.Status == ReservationCancelled {
		return r.CleaningFee
	}
	c := ClassifyReservation(r.CheckIn, r.CheckOut, period, mode)
	if !c.InPeriod {
		return decimal.Zero
	}
	return r.CleaningFee.Mul(c.Proration)
}
