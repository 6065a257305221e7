/*
builder.go - Statement assembly

PURPOSE:
  Builds a Statement for a target (one listing, or a set of listings for a
  combined/group statement) over a period: fetches reservations and
  expenses per property, allocates revenue and classifies expenses, merges
  the per-property results into one ordered item list, computes totals
  once over the merged set, and persists a draft.

SKIP RULE:
  In bulk and scheduled contexts a property with zero qualifying
  reservations and zero qualifying expenses is skipped, not generated.
  The skip surfaces as ErrNoActivity and is recorded in summaries; it is
  not an error.
*/
package statement

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// BuildRequest describes one statement to assemble.
type BuildRequest struct {
	// Resolved target listings; one for a single statement, several for a
	// combined/group statement.
	Listings []Listing

	// Group identity for combined statements built from a listing group.
	GroupID   string
	GroupName string
	GroupTags []string

	Period          Period
	CalculationType CalculationType

	CleaningFeePassThrough bool

	// CreatedBy defaults to "user"; scheduled generation passes
	// CreatedBySystem.
	CreatedBy string

	// Finalize persists the statement as final instead of draft.
	Finalize bool

	// SkipIfEmpty turns a zero-activity build into ErrNoActivity instead
	// of an empty statement. Set in bulk and scheduled contexts.
	SkipIfEmpty bool

	// Persist controls whether the built statement is saved. Reconfigure
	// rebuilds in memory and persists only after re-applying edit deltas.
	Persist bool

	// ExcludeStatementID keeps a rebuild from dedup-matching against the
	// statement being rebuilt.
	ExcludeStatementID string
}

// Builder assembles statements from source data.
type Builder struct {
	Store Store
	Guard *DuplicateGuard
	Fees  FeeConfig
}

func NewBuilder(store Store, fees FeeConfig) *Builder {
	return &Builder{
		Store: store,
		Guard: &DuplicateGuard{Store: store},
		Fees:  fees,
	}
}

// Build assembles (and usually persists) one statement.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*Statement, error) {
	if !req.Period.Valid() {
		return nil, ErrInvalidPeriod
	}
	if !req.CalculationType.Valid() {
		return nil, ErrInvalidCalculationType
	}
	if len(req.Listings) == 0 {
		return nil, ErrListingNotFound
	}

	listings := make([]Listing, len(req.Listings))
	copy(listings, req.Listings)
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })

	propertyIDs := make([]string, len(listings))
	for i, l := range listings {
		propertyIDs[i] = l.ID
	}

	billed, err := b.Guard.BilledIndexFor(ctx, propertyIDs, req.Period, req.ExcludeStatementID)
	if err != nil {
		return nil, err
	}

	var (
		reservations []ReservationRef
		items        []LineItem
		allCohost    = true
	)

	for _, listing := range listings {
		if !listing.CohostOnAirbnb {
			allCohost = false
		}

		src, err := b.Store.ReservationsOverlapping(ctx, listing.ID, req.Period)
		if err != nil {
			return nil, &SourceFetchError{PropertyID: listing.ID, Err: err}
		}
		for _, ref := range QualifyingReservations(src, req.Period, req.CalculationType, listing) {
			// Reservations billed on a prior finalized overlapping
			// statement are excluded outright; unlike expenses they have
			// no hidden state to audit.
			if _, dup := billed.Lookup(ref.PropertyID, ref.SourceID); dup {
				continue
			}
			reservations = append(reservations, ref)
		}

		expenses, err := b.Store.ExpensesForPeriod(ctx, listing.ID, req.Period)
		if err != nil {
			return nil, &SourceFetchError{PropertyID: listing.ID, Err: err}
		}
		items = append(items, ClassifyExpenses(expenses, billed)...)
	}

	sortItems(items)
	sortReservations(reservations)

	st := &Statement{
		ID:              uuid.NewString(),
		OwnerIDs:        ownerIDsOf(listings),
		PropertyIDs:     propertyIDs,
		GroupID:         req.GroupID,
		GroupName:       req.GroupName,
		GroupTags:       req.GroupTags,
		PeriodStart:     req.Period.Start,
		PeriodEnd:       req.Period.End,
		CalculationType: req.CalculationType,
		Items:           items,
		Reservations:    reservations,
		Status:          StatusDraft,
		PayoutStatus:    PayoutNone,
		CohostOnAirbnb:  allCohost,

		CleaningFeePassThrough: req.CleaningFeePassThrough,
		CreatedBy:              req.CreatedBy,
		Version:                1,
		CreatedAt:              time.Now().UTC(),
		UpdatedAt:              time.Now().UTC(),
	}
	if st.CreatedBy == "" {
		st.CreatedBy = "user"
	}
	if req.Finalize {
		st.Status = StatusFinal
	}

	if req.SkipIfEmpty && !st.HasActivity() {
		return nil, ErrNoActivity
	}

	Recompute(st, b.Fees)

	if req.Persist {
		if err := b.Store.SaveStatement(ctx, st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// ownerIDsOf collects the distinct owner ids across the target listings,
// in stable order.
func ownerIDsOf(listings []Listing) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, l := range listings {
		if l.OwnerID == "" || seen[l.OwnerID] {
			continue
		}
		seen[l.OwnerID] = true
		ids = append(ids, l.OwnerID)
	}
	sort.Strings(ids)
	return ids
}

// sortItems orders the flat item list: date, then source property, then
// source id. Global item indices used by edits address this order.
func sortItems(items []LineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		if items[i].PropertyID != items[j].PropertyID {
			return items[i].PropertyID < items[j].PropertyID
		}
		return items[i].SourceID < items[j].SourceID
	})
}

func sortReservations(reservations []ReservationRef) {
	sort.SliceStable(reservations, func(i, j int) bool {
		if !reservations[i].CheckIn.Equal(reservations[j].CheckIn) {
			return reservations[i].CheckIn.Before(reservations[j].CheckIn)
		}
		return reservations[i].SourceID < reservations[j].SourceID
	})
}
