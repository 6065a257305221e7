/*
edit.go - Post-hoc statement mutations and deterministic recompute

PURPOSE:
  Applies targeted edits to a persisted Statement and recomputes totals
  from the resulting item/reservation set. Every operation validates fully
  before mutating, mutates a copy, recomputes, and persists with an
  optimistic version check - a failed edit leaves the stored statement
  untouched.

LIFECYCLE RULES:
  draft -> draft   edits always allowed
  final -> final   most edits still allowed; payout/status fields protected
  sent / paid      structural edits rejected

SUPPORTED OPERATIONS:
  - Toggle item visibility by stable global index, including restoring
    ll_cover / prior_statement / manual hidden items (a pure un-hide)
  - Remove/add reservations by source id
  - Add a fully custom reservation (caller-supplied amounts)
  - Add a cancelled reservation for record-keeping
  - Edit one item's date/description/category/amount
  - Edit cleaning fees per reservation (aggregate-only recompute)
  - Reconfigure period/mode: full rebuild from source data, re-applying
    custom reservations and manual add/remove deltas on top
*/
package statement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EDIT REQUEST
// =============================================================================

type ItemVisibilityUpdate struct {
	GlobalIndex int
	Hidden      bool
}

// ItemFieldUpdate patches a single item; nil fields are left unchanged.
type ItemFieldUpdate struct {
	GlobalIndex int
	Date        *Date
	Description *string
	Category    *string
	Amount      *decimal.Decimal
}

// CustomReservation carries caller-supplied financials; it bypasses revenue
// allocation entirely.
type CustomReservation struct {
	PropertyID  string
	GuestName   string
	CheckIn     Date
	CheckOut    Date
	GrossAmount decimal.Decimal
	CleaningFee decimal.Decimal
}

// CancelledAddition attaches a cancelled reservation for record-keeping at
// its original amount, or a caller-specified one (typically $0).
type CancelledAddition struct {
	SourceID string
	Amount   *decimal.Decimal
}

// EditRequest batches one or more edit operations. All operations are
// validated before any is applied.
type EditRequest struct {
	ItemVisibility         []ItemVisibilityUpdate
	ItemUpdates            []ItemFieldUpdate
	ReservationIDsToAdd    []string
	ReservationIDsToRemove []string
	CustomReservation      *CustomReservation
	CancelledReservations  []CancelledAddition
	CleaningFeeUpdates     map[string]decimal.Decimal
}

func (r EditRequest) isEmpty() bool {
	return len(r.ItemVisibility) == 0 &&
		len(r.ItemUpdates) == 0 &&
		len(r.ReservationIDsToAdd) == 0 &&
		len(r.ReservationIDsToRemove) == 0 &&
		r.CustomReservation == nil &&
		len(r.CancelledReservations) == 0 &&
		len(r.CleaningFeeUpdates) == 0
}

// cleaningOnly reports a request that touches nothing but cleaning fees;
// such edits recompute only the cleaning aggregate.
func (r EditRequest) cleaningOnly() bool {
	return len(r.CleaningFeeUpdates) > 0 &&
		len(r.ItemVisibility) == 0 &&
		len(r.ItemUpdates) == 0 &&
		len(r.ReservationIDsToAdd) == 0 &&
		len(r.ReservationIDsToRemove) == 0 &&
		r.CustomReservation == nil &&
		len(r.CancelledReservations) == 0
}

// =============================================================================
// EDIT ENGINE
// =============================================================================

type EditEngine struct {
	Store   Store
	Builder *Builder
	Fees    FeeConfig
}

func NewEditEngine(store Store, fees FeeConfig) *EditEngine {
	return &EditEngine{
		Store:   store,
		Builder: NewBuilder(store, fees),
		Fees:    fees,
	}
}

// Edit applies a batch of edit operations to a statement and recomputes its
// totals. The statement is persisted only if every operation succeeds.
func (e *EditEngine) Edit(ctx context.Context, id string, req EditRequest) (*Statement, error) {
	stored, err := e.Store.GetStatement(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.IsLocked() {
		return nil, &LockedError{StatementID: id, Status: stored.Status, PayoutStatus: stored.PayoutStatus}
	}
	if req.isEmpty() {
		return stored, nil
	}

	st := stored.Clone()

	// Validate every index before touching anything; a stale client state
	// must not leave a half-applied edit behind.
	for _, u := range req.ItemVisibility {
		if u.GlobalIndex < 0 || u.GlobalIndex >= len(st.Items) {
			return nil, &StaleIndexError{Index: u.GlobalIndex, Count: len(st.Items)}
		}
	}
	for _, u := range req.ItemUpdates {
		if u.GlobalIndex < 0 || u.GlobalIndex >= len(st.Items) {
			return nil, &StaleIndexError{Index: u.GlobalIndex, Count: len(st.Items)}
		}
	}

	if err := e.applyReservationRemovals(st, req.ReservationIDsToRemove); err != nil {
		return nil, err
	}
	if err := e.applyReservationAdditions(ctx, st, req.ReservationIDsToAdd); err != nil {
		return nil, err
	}
	if err := e.applyCancelledAdditions(ctx, st, req.CancelledReservations); err != nil {
		return nil, err
	}
	if req.CustomReservation != nil {
		if err := e.applyCustomReservation(ctx, st, *req.CustomReservation); err != nil {
			return nil, err
		}
	}
	applyVisibilityUpdates(st, req.ItemVisibility)
	applyItemUpdates(st, req.ItemUpdates)
	if err := applyCleaningFeeUpdates(st, req.CleaningFeeUpdates); err != nil {
		return nil, err
	}

	if req.cleaningOnly() {
		RecomputeCleaningAggregate(st)
	} else {
		Recompute(st, e.Fees)
	}

	return e.persist(ctx, st)
}

// Reconfigure changes the statement's period and/or calculation mode. This
// re-runs the builder against source data for the new configuration and
// re-applies the statement's edit deltas (custom reservations, manual
// reservation adds/removes, manual item hides) on top of the fresh base.
// A failed reconfigure leaves the stored statement fully intact.
func (e *EditEngine) Reconfigure(ctx context.Context, id string, period Period, mode CalculationType) (*Statement, error) {
	if !period.Valid() {
		return nil, ErrInvalidPeriod
	}
	if !mode.Valid() {
		return nil, ErrInvalidCalculationType
	}

	stored, err := e.Store.GetStatement(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.IsLocked() {
		return nil, &LockedError{StatementID: id, Status: stored.Status, PayoutStatus: stored.PayoutStatus}
	}

	listings := make([]Listing, 0, len(stored.PropertyIDs))
	for _, pid := range stored.PropertyIDs {
		listing, err := e.Store.GetListing(ctx, pid)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *listing)
	}

	rebuilt, err := e.Builder.Build(ctx, BuildRequest{
		Listings:               listings,
		GroupID:                stored.GroupID,
		GroupName:              stored.GroupName,
		GroupTags:              stored.GroupTags,
		Period:                 period,
		CalculationType:        mode,
		CleaningFeePassThrough: stored.CleaningFeePassThrough,
		CreatedBy:              stored.CreatedBy,
		ExcludeStatementID:     stored.ID,
	})
	if err != nil {
		return nil, err
	}

	st := stored.Clone()
	st.PeriodStart = period.Start
	st.PeriodEnd = period.End
	st.CalculationType = mode
	st.Items = rebuilt.Items
	st.Reservations = rebuilt.Reservations
	st.CohostOnAirbnb = rebuilt.CohostOnAirbnb

	e.replayDeltas(ctx, st, stored)

	Recompute(st, e.Fees)
	return e.persist(ctx, st)
}

// replayDeltas re-applies prior edits on top of a freshly rebuilt base.
func (e *EditEngine) replayDeltas(ctx context.Context, st *Statement, old *Statement) {
	// Manual removals win over the rebuild.
	for _, id := range st.ManuallyRemovedReservations {
		if i := st.FindReservation(id); i >= 0 {
			st.Reservations = append(st.Reservations[:i], st.Reservations[i+1:]...)
		}
	}

	// Custom reservations are preserved verbatim.
	for _, r := range old.Reservations {
		if r.IsCustom {
			st.Reservations = append(st.Reservations, r)
		}
	}

	// Manual additions are carried over with their edited amounts when the
	// rebuild did not already pick them up.
	for _, id := range st.ManuallyAddedReservations {
		if st.FindReservation(id) >= 0 {
			continue
		}
		if i := old.FindReservation(id); i >= 0 {
			st.Reservations = append(st.Reservations, old.Reservations[i])
		}
	}

	// Manual hides carry over to the rebuilt item of the same source record.
	manualHidden := make(map[BilledKey]bool)
	for _, item := range old.Items {
		if item.Hidden && item.HiddenReason == HiddenManual && item.SourceID != "" {
			manualHidden[BilledKey{PropertyID: item.PropertyID, SourceID: item.SourceID}] = true
		}
	}
	for i := range st.Items {
		if manualHidden[BilledKey{PropertyID: st.Items[i].PropertyID, SourceID: st.Items[i].SourceID}] {
			st.Items[i].Hidden = true
			st.Items[i].HiddenReason = HiddenManual
		}
	}

	sortReservations(st.Reservations)
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// Finalize moves a draft to final. Finalizing is what locks its billed
// records into duplicate prevention for later periods.
func (e *EditEngine) Finalize(ctx context.Context, id string) (*Statement, error) {
	st, err := e.Store.GetStatement(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusDraft {
		return nil, ErrDraftOnly
	}
	st = st.Clone()
	st.Status = StatusFinal
	return e.persist(ctx, st)
}

// MarkSent records delivery; the statement becomes structurally immutable.
// Only final statements can be sent: sending commits the statement's billed
// records to duplicate prevention, so drafts must be finalized first.
func (e *EditEngine) MarkSent(ctx context.Context, id string) (*Statement, error) {
	st, err := e.Store.GetStatement(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusFinal {
		return nil, ErrFinalOnly
	}
	st = st.Clone()
	st.Status = StatusSent
	return e.persist(ctx, st)
}

// SetPayoutStatus updates payout tracking without touching content.
func (e *EditEngine) SetPayoutStatus(ctx context.Context, id string, status PayoutStatus) (*Statement, error) {
	st, err := e.Store.GetStatement(ctx, id)
	if err != nil {
		return nil, err
	}
	st = st.Clone()
	st.PayoutStatus = status
	return e.persist(ctx, st)
}

// SetNotes updates internal notes; allowed in any lifecycle state.
func (e *EditEngine) SetNotes(ctx context.Context, id string, notes string) (*Statement, error) {
	st, err := e.Store.GetStatement(ctx, id)
	if err != nil {
		return nil, err
	}
	st = st.Clone()
	st.InternalNotes = notes
	return e.persist(ctx, st)
}

// Delete removes a draft statement.
func (e *EditEngine) Delete(ctx context.Context, id string) error {
	st, err := e.Store.GetStatement(ctx, id)
	if err != nil {
		return err
	}
	if st.Status != StatusDraft {
		return ErrDraftOnly
	}
	return e.Store.DeleteStatement(ctx, id)
}

// =============================================================================
// OPERATION APPLICATION
// =============================================================================

func (e *EditEngine) applyReservationRemovals(st *Statement, ids []string) error {
	for _, id := range ids {
		i := st.FindReservation(id)
		if i < 0 {
			return ErrReservationNotFound
		}
		st.Reservations = append(st.Reservations[:i], st.Reservations[i+1:]...)
		st.ManuallyRemovedReservations = appendUnique(st.ManuallyRemovedReservations, id)
		st.ManuallyAddedReservations = removeString(st.ManuallyAddedReservations, id)
	}
	return nil
}

func (e *EditEngine) applyReservationAdditions(ctx context.Context, st *Statement, ids []string) error {
	for _, id := range ids {
		if st.FindReservation(id) >= 0 {
			return ErrDuplicateReservation
		}
		src, listing, err := e.findSourceReservation(ctx, st, id)
		if err != nil {
			return err
		}
		st.Reservations = append(st.Reservations, ReservationRef{
			SourceID:       src.ID,
			PropertyID:     src.PropertyID,
			GuestName:      src.GuestName,
			CheckIn:        src.CheckIn,
			CheckOut:       src.CheckOut,
			GrossAmount:    src.GrossAmount,
			CleaningFee:    src.CleaningFee,
			Status:         src.Status,
			CohostExcluded: listing.CohostOnAirbnb,
			PMFeePercent:   listing.EffectivePMFee(),
		})
		st.ManuallyAddedReservations = appendUnique(st.ManuallyAddedReservations, id)
		st.ManuallyRemovedReservations = removeString(st.ManuallyRemovedReservations, id)
	}
	sortReservations(st.Reservations)
	return nil
}

func (e *EditEngine) applyCancelledAdditions(ctx context.Context, st *Statement, additions []CancelledAddition) error {
	for _, add := range additions {
		if st.FindReservation(add.SourceID) >= 0 {
			return ErrDuplicateReservation
		}
		src, listing, err := e.findSourceReservation(ctx, st, add.SourceID)
		if err != nil {
			return err
		}
		amount := src.GrossAmount
		if add.Amount != nil {
			amount = *add.Amount
		}
		st.Reservations = append(st.Reservations, ReservationRef{
			SourceID:     src.ID,
			PropertyID:   src.PropertyID,
			GuestName:    src.GuestName,
			CheckIn:      src.CheckIn,
			CheckOut:     src.CheckOut,
			GrossAmount:  amount,
			CleaningFee:  decimal.Zero,
			Status:       ReservationCancelled,
			PMFeePercent: listing.EffectivePMFee(),
		})
		st.ManuallyAddedReservations = appendUnique(st.ManuallyAddedReservations, add.SourceID)
	}
	sortReservations(st.Reservations)
	return nil
}

func (e *EditEngine) applyCustomReservation(ctx context.Context, st *Statement, custom CustomReservation) error {
	propertyID := custom.PropertyID
	if propertyID == "" && len(st.PropertyIDs) == 1 {
		propertyID = st.PropertyIDs[0]
	}

	// Custom reservations carry the listing's configured commission; the
	// default applies only when the property is not in the catalog.
	pmFee := DefaultPMFeePercent
	if propertyID != "" {
		listing, err := e.Store.GetListing(ctx, propertyID)
		switch {
		case err == nil:
			pmFee = listing.EffectivePMFee()
		case !IsNotFound(err):
			return err
		}
	}

	st.Reservations = append(st.Reservations, ReservationRef{
		SourceID:     "custom-" + uuid.NewString(),
		PropertyID:   propertyID,
		GuestName:    custom.GuestName,
		CheckIn:      custom.CheckIn,
		CheckOut:     custom.CheckOut,
		GrossAmount:  custom.GrossAmount,
		CleaningFee:  custom.CleaningFee,
		Status:       ReservationActive,
		IsCustom:     true,
		PMFeePercent: pmFee,
	})
	sortReservations(st.Reservations)
	return nil
}

// findSourceReservation looks a reservation up across the statement's
// properties.
func (e *EditEngine) findSourceReservation(ctx context.Context, st *Statement, id string) (*SourceReservation, *Listing, error) {
	for _, pid := range st.PropertyIDs {
		src, err := e.Store.GetReservation(ctx, pid, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, nil, err
		}
		listing, err := e.Store.GetListing(ctx, pid)
		if err != nil {
			return nil, nil, err
		}
		return src, listing, nil
	}
	return nil, nil, ErrReservationNotFound
}

func applyVisibilityUpdates(st *Statement, updates []ItemVisibilityUpdate) {
	for _, u := range updates {
		item := &st.Items[u.GlobalIndex]
		if u.Hidden == item.Hidden {
			continue
		}
		if u.Hidden {
			item.Hidden = true
			item.HiddenReason = HiddenManual
		} else {
			// Restoration is a pure un-hide, never a re-classification.
			item.Hidden = false
			item.HiddenReason = HiddenNone
			item.PriorStatementID = ""
			item.PriorPeriod = nil
		}
	}
}

func applyItemUpdates(st *Statement, updates []ItemFieldUpdate) {
	for _, u := range updates {
		item := &st.Items[u.GlobalIndex]
		if u.Date != nil {
			item.Date = *u.Date
		}
		if u.Description != nil {
			item.Description = *u.Description
		}
		if u.Category != nil {
			item.Category = *u.Category
		}
		if u.Amount != nil {
			item.Amount = *u.Amount
		}
	}
}

func applyCleaningFeeUpdates(st *Statement, updates map[string]decimal.Decimal) error {
	for id, fee := range updates {
		i := st.FindReservation(id)
		if i < 0 {
			return ErrReservationNotFound
		}
		st.Reservations[i].CleaningFee = fee
	}
	return nil
}

// persist bumps the version and writes through the optimistic check.
func (e *EditEngine) persist(ctx context.Context, st *Statement) (*Statement, error) {
	st.Version++
	st.UpdatedAt = time.Now().UTC()
	if err := e.Store.UpdateStatement(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
