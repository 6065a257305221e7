/*
dedup.go - Duplicate prevention against prior finalized statements

PURPOSE:
  Prevents a reservation or expense from being billed twice when a period
  is regenerated or when overlapping cadences (e.g. a bi-weekly and a
  monthly tag) both touch the same records. Only FINALIZED statements with
  an overlapping period count as prior billing; drafts can be regenerated
  freely.

DEDUP KEY:
  Matching is content-addressed on (propertyId, sourceId) and resolves to
  the finalized statement that billed the record, so the hidden line item
  can reference its prior statement and period.
*/
package statement

import "context"

// BilledKey identifies one billed source record.
type BilledKey struct {
	PropertyID string
	SourceID   string
}

// BilledRef points at the finalized statement that billed a record.
type BilledRef struct {
	StatementID string
	Period      Period
}

// BilledIndex maps billed source records to the finalized statement that
// billed them.
type BilledIndex map[BilledKey]BilledRef

// Lookup returns the prior billing reference for a record, if any.
func (idx BilledIndex) Lookup(propertyID, sourceID string) (BilledRef, bool) {
	if sourceID == "" {
		return BilledRef{}, false
	}
	ref, ok := idx[BilledKey{PropertyID: propertyID, SourceID: sourceID}]
	return ref, ok
}

// DuplicateGuard consults prior statements for duplicate billing and
// duplicate generation.
type DuplicateGuard struct {
	Store StatementStore
}

// BilledIndexFor builds the billed-record index from finalized statements
// whose periods overlap the given one, for the given properties. The
// statement being rebuilt (if any) is excluded so a regeneration never
// dedups against itself.
func (g *DuplicateGuard) BilledIndexFor(ctx context.Context, propertyIDs []string, period Period, excludeStatementID string) (BilledIndex, error) {
	prior, err := g.Store.FindOverlapping(ctx, propertyIDs, period)
	if err != nil {
		return nil, err
	}

	idx := make(BilledIndex)
	for _, st := range prior {
		// Sent statements passed through final; both count as billed.
		if st.Status == StatusDraft || st.ID == excludeStatementID {
			continue
		}
		ref := BilledRef{StatementID: st.ID, Period: st.Period()}
		for _, item := range st.Items {
			// Items the prior statement itself excluded were never billed.
			if item.Hidden || item.SourceID == "" {
				continue
			}
			idx[BilledKey{PropertyID: item.PropertyID, SourceID: item.SourceID}] = ref
		}
		for _, r := range st.Reservations {
			if r.SourceID == "" {
				continue
			}
			idx[BilledKey{PropertyID: r.PropertyID, SourceID: r.SourceID}] = ref
		}
	}
	return idx, nil
}

// HasStatementFor reports whether any statement already exists for the
// exact target and period. Used by scheduled generation to skip targets
// instead of producing duplicate drafts.
func (g *DuplicateGuard) HasStatementFor(ctx context.Context, propertyIDs []string, period Period) (bool, error) {
	existing, err := g.Store.FindOverlapping(ctx, propertyIDs, period)
	if err != nil {
		return false, err
	}
	for _, st := range existing {
		if !st.PeriodStart.Equal(period.Start) || !st.PeriodEnd.Equal(period.End) {
			continue
		}
		if samePropertySet(st.PropertyIDs, propertyIDs) {
			return true, nil
		}
	}
	return false, nil
}

func samePropertySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}
