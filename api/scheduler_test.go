package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/api"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/config"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
	memstore "github.com/dnovakovic099/owner-statements-app-complete-sub009/statement/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type frozenClock struct{ now time.Time }

func (c frozenClock) Now() time.Time { return c.now }

func d(s string) statement.Date { return statement.MustDate(s) }

func newScheduler(store *memstore.Memory) *api.TagScheduler {
	sched := api.NewTagScheduler(store, statement.FeeConfig{}, config.SchedulerConfig{
		Enabled:     true,
		Timezone:    "UTC",
		TriggerHour: 5,
	})
	sched.Clock = frozenClock{now: time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC)}
	return sched
}

func seedWeeklyListing(store *memstore.Memory, id string) {
	store.AddOwner(statement.Owner{ID: "owner-1", Name: "Alice", Role: statement.RoleOwner})
	store.AddListing(statement.Listing{
		ID:      id,
		Name:    "Listing " + id,
		OwnerID: "owner-1",
		Tags:    []string{"WEEKLY"},
		Active:  true,
	})
	// Activity inside the prior Mon-Sun week (Mar 4 - Mar 10).
	store.AddReservation(statement.SourceReservation{
		ID: "r-" + id, PropertyID: id,
		GuestName: "Guest",
		CheckIn:   d("2024-03-05"), CheckOut: d("2024-03-08"),
		GrossAmount: statement.MustMoney("500"),
		Status:      statement.ReservationActive,
	})
}

func listAll(t *testing.T, store *memstore.Memory) []*statement.Statement {
	t.Helper()
	stmts, err := store.ListStatements(context.Background(), statement.StatementFilter{})
	require.NoError(t, err)
	return stmts
}

// runsForTag filters audit runs by cadence tag; a Monday evaluates several
// tags and records a run for each.
func runsForTag(t *testing.T, store *memstore.Memory, tag string) []statement.GenerationRun {
	t.Helper()
	all, err := store.ListGenerationRuns(context.Background(), "")
	require.NoError(t, err)
	var out []statement.GenerationRun
	for _, run := range all {
		if run.Tag == tag {
			out = append(out, run)
		}
	}
	return out
}

// =============================================================================
// DUE-DATE GATING
// =============================================================================

func TestRunOnce_NothingDueOnOrdinaryDay(t *testing.T) {
	store := memstore.NewMemory()
	seedWeeklyListing(store, "prop-1")
	sched := newScheduler(store)

	// Tuesday: no cadence fires.
	sched.RunOnce(context.Background(), d("2024-03-12"))

	assert.Empty(t, listAll(t, store))
	runs, err := store.ListGenerationRuns(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunOnce_WeeklyOnMonday(t *testing.T) {
	store := memstore.NewMemory()
	seedWeeklyListing(store, "prop-1")
	sched := newScheduler(store)

	sched.RunOnce(context.Background(), d("2024-03-11"))

	stmts := listAll(t, store)
	require.Len(t, stmts, 1)
	st := stmts[0]
	assert.Equal(t, "2024-03-04", st.PeriodStart.String())
	assert.Equal(t, "2024-03-10", st.PeriodEnd.String())
	assert.Equal(t, statement.StatusDraft, st.Status)
	assert.Equal(t, statement.CreatedBySystem, st.CreatedBy)
	assert.True(t, st.Totals.TotalRevenue.Equal(statement.MustMoney("500")))
}

func TestRunOnce_SecondRunSkipsExisting(t *testing.T) {
	store := memstore.NewMemory()
	seedWeeklyListing(store, "prop-1")
	sched := newScheduler(store)

	sched.RunOnce(context.Background(), d("2024-03-11"))
	sched.RunOnce(context.Background(), d("2024-03-11"))

	assert.Len(t, listAll(t, store), 1, "restart must not double-generate")

	runs := runsForTag(t, store, "WEEKLY")
	require.Len(t, runs, 2)
	assert.Equal(t, 1, runs[0].Generated)
	assert.Equal(t, 1, runs[1].Skipped)
}

// =============================================================================
// TARGET FAN-OUT
// =============================================================================

func TestRunOnce_GroupCoversItsMembers(t *testing.T) {
	store := memstore.NewMemory()
	store.AddOwner(statement.Owner{ID: "owner-1", Name: "Alice", Role: statement.RoleOwner})
	store.AddListing(statement.Listing{
		ID: "prop-1", OwnerID: "owner-1", GroupID: "grp-1",
		Tags: []string{"WEEKLY"}, Active: true,
	})
	store.AddListing(statement.Listing{
		ID: "prop-2", OwnerID: "owner-1", GroupID: "grp-1", Active: true,
	})
	store.AddGroup(statement.ListingGroup{
		ID: "grp-1", Name: "Lakefront",
		Tags:            []string{"WEEKLY"},
		CalculationType: statement.CalcCalendar,
		ListingIDs:      []string{"prop-1", "prop-2"},
	})
	store.AddReservation(statement.SourceReservation{
		ID: "r1", PropertyID: "prop-2",
		GuestName: "Guest",
		CheckIn:   d("2024-03-05"), CheckOut: d("2024-03-08"),
		GrossAmount: statement.MustMoney("600"),
		Status:      statement.ReservationActive,
	})

	sched := newScheduler(store)
	sched.RunOnce(context.Background(), d("2024-03-11"))

	stmts := listAll(t, store)
	require.Len(t, stmts, 1, "a listing in a tagged group gets no standalone statement")
	st := stmts[0]
	assert.Equal(t, "grp-1", st.GroupID)
	assert.Equal(t, "Lakefront", st.GroupName)
	assert.Equal(t, statement.CalcCalendar, st.CalculationType)
	assert.ElementsMatch(t, []string{"prop-1", "prop-2"}, st.PropertyIDs)
}

func TestRunOnce_IdleTargetSkipped(t *testing.T) {
	store := memstore.NewMemory()
	store.AddOwner(statement.Owner{ID: "owner-1", Name: "Alice", Role: statement.RoleOwner})
	store.AddListing(statement.Listing{
		ID: "prop-1", OwnerID: "owner-1",
		Tags: []string{"WEEKLY"}, Active: true,
	})

	sched := newScheduler(store)
	sched.RunOnce(context.Background(), d("2024-03-11"))

	assert.Empty(t, listAll(t, store))

	runs := runsForTag(t, store, "WEEKLY")
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 0, runs[0].Generated)
	assert.Equal(t, 1, runs[0].Skipped)
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestRunOnce_InactiveAndUntaggedIgnored(t *testing.T) {
	store := memstore.NewMemory()
	store.AddOwner(statement.Owner{ID: "owner-1", Name: "Alice", Role: statement.RoleOwner})
	store.AddListing(statement.Listing{
		ID: "prop-1", OwnerID: "owner-1",
		Tags: []string{"WEEKLY"}, Active: false,
	})
	store.AddListing(statement.Listing{
		ID: "prop-2", OwnerID: "owner-1", Active: true,
	})

	sched := newScheduler(store)
	sched.RunOnce(context.Background(), d("2024-03-11"))

	assert.Empty(t, listAll(t, store))
	runs := runsForTag(t, store, "WEEKLY")
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].Generated+runs[0].Skipped)
}

// =============================================================================
// MONTHLY CADENCE
// =============================================================================

func TestRunOnce_MonthlyOnFirstOfMonth(t *testing.T) {
	store := memstore.NewMemory()
	store.AddOwner(statement.Owner{ID: "owner-1", Name: "Alice", Role: statement.RoleOwner})
	store.AddListing(statement.Listing{
		ID: "prop-1", OwnerID: "owner-1",
		Tags: []string{"MONTHLY"}, Active: true,
	})
	store.AddReservation(statement.SourceReservation{
		ID: "r1", PropertyID: "prop-1",
		GuestName: "Guest",
		CheckIn:   d("2024-02-20"), CheckOut: d("2024-02-25"),
		GrossAmount: statement.MustMoney("900"),
		Status:      statement.ReservationActive,
	})

	sched := newScheduler(store)
	sched.RunOnce(context.Background(), d("2024-03-01"))

	stmts := listAll(t, store)
	require.Len(t, stmts, 1)
	assert.Equal(t, "2024-02-01", stmts[0].PeriodStart.String())
	assert.Equal(t, "2024-02-29", stmts[0].PeriodEnd.String())
}
