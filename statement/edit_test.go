package statement_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
	memstore "github.com/dnovakovic099/owner-statements-app-complete-sub009/statement/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newEditFixture builds and persists a March statement with one reservation
// and two items (one visible, one ll_cover hidden).
func newEditFixture(t *testing.T) (*statement.EditEngine, *memstore.Memory, *statement.Statement) {
	t.Helper()
	store := memstore.NewMemory()
	engine := statement.NewEditEngine(store, testFees())
	builder := statement.NewBuilder(store, testFees())

	listing := seedListing(store, "prop-1", "owner-1")
	store.AddReservation(activeReservation("r1", "prop-1", "2024-03-05", "2024-03-10", "1000"))
	store.AddReservation(activeReservation("r2", "prop-1", "2024-03-15", "2024-03-20", "600"))
	store.AddExpense(expense("e1", "prop-1", "2024-03-08", "100", false))
	store.AddExpense(expense("e2", "prop-1", "2024-03-09", "150", true))

	st, err := builder.Build(context.Background(), buildRequest(listing))
	require.NoError(t, err)
	return engine, store, st
}

// =============================================================================
// ITEM VISIBILITY
// =============================================================================

func TestEdit_UnhideLLCoverItem(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)
	require.True(t, st.Items[1].Hidden)
	payoutBefore := st.Totals.OwnerPayout

	updated, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		ItemVisibility: []statement.ItemVisibilityUpdate{{GlobalIndex: 1, Hidden: false}},
	})
	require.NoError(t, err)

	assert.False(t, updated.Items[1].Hidden)
	assert.Equal(t, statement.HiddenNone, updated.Items[1].HiddenReason)

	// Payout drops by exactly the restored expense amount.
	diff := payoutBefore.Sub(updated.Totals.OwnerPayout)
	assert.True(t, diff.Equal(statement.MustMoney("150")), "payout delta %s", diff)
	assert.Equal(t, 2, updated.Version)
}

func TestEdit_HideIsManual(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	updated, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		ItemVisibility: []statement.ItemVisibilityUpdate{{GlobalIndex: 0, Hidden: true}},
	})
	require.NoError(t, err)
	assert.True(t, updated.Items[0].Hidden)
	assert.Equal(t, statement.HiddenManual, updated.Items[0].HiddenReason)
	assert.True(t, updated.Totals.TotalExpenses.IsZero())
}

func TestEdit_StaleIndexRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	engine, store, st := newEditFixture(t)

	_, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		ItemVisibility: []statement.ItemVisibilityUpdate{
			{GlobalIndex: 0, Hidden: true},
			{GlobalIndex: 99, Hidden: true},
		},
	})
	require.ErrorIs(t, err, statement.ErrStaleIndex)

	// Nothing was applied.
	stored, err := store.GetStatement(ctx, st.ID)
	require.NoError(t, err)
	assert.False(t, stored.Items[0].Hidden)
	assert.Equal(t, 1, stored.Version)
}

// =============================================================================
// RESERVATION EDITS
// =============================================================================

func TestEdit_RemoveAndReAddReservation(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	updated, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		ReservationIDsToRemove: []string{"r2"},
	})
	require.NoError(t, err)
	assert.Equal(t, -1, updated.FindReservation("r2"))
	assert.Equal(t, []string{"r2"}, updated.ManuallyRemovedReservations)
	assert.True(t, updated.Totals.TotalRevenue.Equal(statement.MustMoney("1000")))

	updated, err = engine.Edit(ctx, st.ID, statement.EditRequest{
		ReservationIDsToAdd: []string{"r2"},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, updated.FindReservation("r2"), 0)
	assert.Empty(t, updated.ManuallyRemovedReservations)
	assert.Equal(t, []string{"r2"}, updated.ManuallyAddedReservations)
	assert.True(t, updated.Totals.TotalRevenue.Equal(statement.MustMoney("1600")))
}

func TestEdit_AddDuplicateReservationRejected(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	_, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		ReservationIDsToAdd: []string{"r1"},
	})
	assert.ErrorIs(t, err, statement.ErrDuplicateReservation)
}

func TestEdit_AddUnknownReservationRejected(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	_, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		ReservationIDsToAdd: []string{"nope"},
	})
	assert.ErrorIs(t, err, statement.ErrReservationNotFound)
}

func TestEdit_CustomReservation(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	updated, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		CustomReservation: &statement.CustomReservation{
			GuestName:   "Walk-in",
			CheckIn:     d("2024-03-22"),
			CheckOut:    d("2024-03-24"),
			GrossAmount: statement.MustMoney("250"),
			CleaningFee: statement.MustMoney("50"),
		},
	})
	require.NoError(t, err)

	require.Len(t, updated.Reservations, 3)
	i := -1
	for idx, r := range updated.Reservations {
		if r.IsCustom {
			i = idx
		}
	}
	require.GreaterOrEqual(t, i, 0)
	// Property inherited from the single-property statement.
	assert.Equal(t, "prop-1", updated.Reservations[i].PropertyID)
	assert.True(t, updated.Totals.TotalRevenue.Equal(statement.MustMoney("1850")))
}

func TestEdit_CustomReservationUsesListingCommission(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemory()
	engine := statement.NewEditEngine(store, testFees())
	builder := statement.NewBuilder(store, testFees())

	listing := statement.Listing{
		ID: "prop-9", Name: "Listing prop-9", OwnerID: "owner-1",
		PMFeePercent: decimal.NewFromInt(20),
		Active:       true,
	}
	store.AddListing(listing)
	store.AddReservation(activeReservation("r9", "prop-9", "2024-03-05", "2024-03-10", "1000"))

	st, err := builder.Build(ctx, buildRequest(listing))
	require.NoError(t, err)

	updated, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		CustomReservation: &statement.CustomReservation{
			GuestName:   "Walk-in",
			CheckIn:     d("2024-03-22"),
			CheckOut:    d("2024-03-24"),
			GrossAmount: statement.MustMoney("200"),
		},
	})
	require.NoError(t, err)

	i := -1
	for idx, r := range updated.Reservations {
		if r.IsCustom {
			i = idx
		}
	}
	require.GreaterOrEqual(t, i, 0)
	assert.True(t, updated.Reservations[i].PMFeePercent.Equal(decimal.NewFromInt(20)),
		"commission %s", updated.Reservations[i].PMFeePercent)
}

func TestEdit_CancelledReservationZeroAmount(t *testing.T) {
	ctx := context.Background()
	engine, store, st := newEditFixture(t)

	store.AddReservation(statement.SourceReservation{
		ID: "rc", PropertyID: "prop-1",
		GuestName: "Cancelled Guest",
		CheckIn:   d("2024-03-12"), CheckOut: d("2024-03-14"),
		GrossAmount: statement.MustMoney("300"),
		CleaningFee: statement.MustMoney("80"),
		Status:      statement.ReservationCancelled,
	})

	zero := decimal.Zero
	updated, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		CancelledReservations: []statement.CancelledAddition{{SourceID: "rc", Amount: &zero}},
	})
	require.NoError(t, err)

	i := updated.FindReservation("rc")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, statement.ReservationCancelled, updated.Reservations[i].Status)
	assert.True(t, updated.Reservations[i].GrossAmount.IsZero())

	// Revenue is unchanged; the record is attached for record-keeping only.
	assert.True(t, updated.Totals.TotalRevenue.Equal(st.Totals.TotalRevenue))
	// The cancelled reservation contributes no cleaning fee either.
	assert.True(t, updated.Totals.CleaningFees.Equal(st.Totals.CleaningFees))
}

// =============================================================================
// CLEANING-FEE-ONLY EDITS
// =============================================================================

func TestEdit_CleaningOnlySkipsFullRecompute(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)
	payoutBefore := st.Totals.OwnerPayout

	updated, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		CleaningFeeUpdates: map[string]decimal.Decimal{"r1": statement.MustMoney("175")},
	})
	require.NoError(t, err)

	i := updated.FindReservation("r1")
	assert.True(t, updated.Reservations[i].CleaningFee.Equal(statement.MustMoney("175")))
	// 175 + 100 (r2 untouched)
	assert.True(t, updated.Totals.CleaningFees.Equal(statement.MustMoney("275")))
	assert.True(t, updated.Totals.OwnerPayout.Equal(payoutBefore))
}

// =============================================================================
// LOCKING AND CONCURRENCY
// =============================================================================

func TestEdit_LockedStatementRejected(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	_, err := engine.Finalize(ctx, st.ID)
	require.NoError(t, err)
	_, err = engine.MarkSent(ctx, st.ID)
	require.NoError(t, err)

	_, err = engine.Edit(ctx, st.ID, statement.EditRequest{
		ItemVisibility: []statement.ItemVisibilityUpdate{{GlobalIndex: 0, Hidden: true}},
	})
	assert.ErrorIs(t, err, statement.ErrStatementLocked)
}

func TestEdit_PaidPayoutLocks(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	_, err := engine.SetPayoutStatus(ctx, st.ID, statement.PayoutPaid)
	require.NoError(t, err)

	_, err = engine.Edit(ctx, st.ID, statement.EditRequest{
		ReservationIDsToRemove: []string{"r1"},
	})
	assert.ErrorIs(t, err, statement.ErrStatementLocked)
}

func TestEdit_ConcurrentEditLosesVersionRace(t *testing.T) {
	ctx := context.Background()
	_, store, st := newEditFixture(t)

	// A second writer updates the statement out from under a stale copy.
	winner := st.Clone()
	winner.Version++
	require.NoError(t, store.UpdateStatement(ctx, winner))

	stale := st.Clone()
	stale.Version++ // same target version as the winner's write
	err := store.UpdateStatement(ctx, stale)
	assert.ErrorIs(t, err, statement.ErrVersionConflict)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestLifecycle_FinalizeSendDelete(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	final, err := engine.Finalize(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, statement.StatusFinal, final.Status)

	// Finalizing twice is rejected.
	_, err = engine.Finalize(ctx, st.ID)
	assert.ErrorIs(t, err, statement.ErrDraftOnly)

	// Deleting a non-draft is rejected.
	err = engine.Delete(ctx, st.ID)
	assert.ErrorIs(t, err, statement.ErrDraftOnly)

	sent, err := engine.MarkSent(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, statement.StatusSent, sent.Status)

	// Notes remain editable after sending.
	noted, err := engine.SetNotes(ctx, st.ID, "wire sent 3/14")
	require.NoError(t, err)
	assert.Equal(t, "wire sent 3/14", noted.InternalNotes)
}

func TestMarkSent_DraftRejected(t *testing.T) {
	ctx := context.Background()
	engine, store, st := newEditFixture(t)

	_, err := engine.MarkSent(ctx, st.ID)
	assert.ErrorIs(t, err, statement.ErrFinalOnly)

	// The statement stays a draft and its records never enter duplicate
	// prevention.
	stored, err := store.GetStatement(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, statement.StatusDraft, stored.Status)

	guard := &statement.DuplicateGuard{Store: store}
	idx, err := guard.BilledIndexFor(ctx, []string{"prop-1"}, period("2024-03-01", "2024-03-31"), "")
	require.NoError(t, err)
	_, billed := idx[statement.BilledKey{PropertyID: "prop-1", SourceID: "r1"}]
	assert.False(t, billed)
}

func TestDelete_Draft(t *testing.T) {
	ctx := context.Background()
	engine, store, st := newEditFixture(t)

	require.NoError(t, engine.Delete(ctx, st.ID))
	_, err := store.GetStatement(ctx, st.ID)
	assert.ErrorIs(t, err, statement.ErrStatementNotFound)
}

// =============================================================================
// RECONFIGURE
// =============================================================================

func TestReconfigure_RebuildsForNewPeriod(t *testing.T) {
	ctx := context.Background()
	engine, store, st := newEditFixture(t)

	// April has its own activity.
	store.AddReservation(activeReservation("r3", "prop-1", "2024-04-02", "2024-04-06", "700"))

	updated, err := engine.Reconfigure(ctx, st.ID, period("2024-04-01", "2024-04-30"), statement.CalcCheckout)
	require.NoError(t, err)

	assert.Equal(t, st.ID, updated.ID)
	assert.Equal(t, "2024-04-01", updated.PeriodStart.String())
	require.Len(t, updated.Reservations, 1)
	assert.Equal(t, "r3", updated.Reservations[0].SourceID)
	assert.True(t, updated.Totals.TotalRevenue.Equal(statement.MustMoney("700")))
	assert.Equal(t, 2, updated.Version)
}

func TestReconfigure_ReplaysManualDeltas(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	// Manual removal of r2, a custom addition, and a manual item hide.
	_, err := engine.Edit(ctx, st.ID, statement.EditRequest{
		ReservationIDsToRemove: []string{"r2"},
		CustomReservation: &statement.CustomReservation{
			GuestName:   "Walk-in",
			CheckIn:     d("2024-03-22"),
			CheckOut:    d("2024-03-24"),
			GrossAmount: statement.MustMoney("250"),
		},
		ItemVisibility: []statement.ItemVisibilityUpdate{{GlobalIndex: 0, Hidden: true}},
	})
	require.NoError(t, err)

	// Reconfigure to calendar mode over the same period: the rebuild would
	// naturally re-include r2 and re-show e1, but the deltas replay on top.
	updated, err := engine.Reconfigure(ctx, st.ID, period("2024-03-01", "2024-03-31"), statement.CalcCalendar)
	require.NoError(t, err)

	assert.Equal(t, statement.CalcCalendar, updated.CalculationType)
	assert.Equal(t, -1, updated.FindReservation("r2"), "manual removal must survive the rebuild")

	customKept := false
	for _, r := range updated.Reservations {
		if r.IsCustom {
			customKept = true
		}
	}
	assert.True(t, customKept, "custom reservation must survive the rebuild")

	for _, item := range updated.Items {
		if item.SourceID == "e1" {
			assert.True(t, item.Hidden)
			assert.Equal(t, statement.HiddenManual, item.HiddenReason)
		}
	}
}

func TestReconfigure_LockedRejected(t *testing.T) {
	ctx := context.Background()
	engine, _, st := newEditFixture(t)

	_, err := engine.Finalize(ctx, st.ID)
	require.NoError(t, err)
	_, err = engine.MarkSent(ctx, st.ID)
	require.NoError(t, err)

	_, err = engine.Reconfigure(ctx, st.ID, period("2024-04-01", "2024-04-30"), statement.CalcCheckout)
	assert.ErrorIs(t, err, statement.ErrStatementLocked)
}

func TestReconfigure_FailedRebuildLeavesStatementIntact(t *testing.T) {
	ctx := context.Background()
	engine, store, st := newEditFixture(t)

	_, err := engine.Reconfigure(ctx, st.ID, period("2024-04-30", "2024-04-01"), statement.CalcCheckout)
	require.ErrorIs(t, err, statement.ErrInvalidPeriod)

	stored, err := store.GetStatement(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", stored.PeriodStart.String())
	assert.Equal(t, 1, stored.Version)
}
