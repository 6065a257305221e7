package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/jobs"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
	memstore "github.com/dnovakovic099/owner-statements-app-complete-sub009/statement/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) statement.Date { return statement.MustDate(s) }

func marchParams() jobs.AllOwnersParams {
	return jobs.AllOwnersParams{
		Period:          statement.Period{Start: d("2024-03-01"), End: d("2024-03-31")},
		CalculationType: statement.CalcCheckout,
	}
}

// waitForJob polls the registry until the job leaves the queued/processing
// states.
func waitForJob(t *testing.T, reg jobs.Registry, id string) *jobs.Job {
	t.Helper()
	var job *jobs.Job
	require.Eventually(t, func() bool {
		j, ok := reg.Get(id)
		if !ok {
			return false
		}
		job = j
		return j.Status == jobs.StatusCompleted || j.Status == jobs.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

// =============================================================================
// MEMORY REGISTRY
// =============================================================================

func TestMemoryRegistry_Lifecycle(t *testing.T) {
	reg := jobs.NewMemoryRegistry()

	job := reg.Create("test_job")
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, jobs.StatusQueued, job.Status)

	reg.SetProcessing(job.ID, 10)
	got, ok := reg.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusProcessing, got.Status)
	assert.Equal(t, 10, got.Total)
	assert.NotNil(t, got.StartedAt)

	reg.Complete(job.ID, jobs.Result{Generated: []string{"st-1"}})
	got, ok = reg.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Result)
	assert.Equal(t, []string{"st-1"}, got.Result.Generated)
}

func TestMemoryRegistry_ProgressIsMonotonic(t *testing.T) {
	reg := jobs.NewMemoryRegistry()
	job := reg.Create("test_job")
	reg.SetProcessing(job.ID, 5)

	reg.UpdateProgress(job.ID, 3)
	reg.UpdateProgress(job.ID, 2) // late update must not regress

	got, _ := reg.Get(job.ID)
	assert.Equal(t, 3, got.Progress)
}

func TestMemoryRegistry_GetReturnsCopy(t *testing.T) {
	reg := jobs.NewMemoryRegistry()
	job := reg.Create("test_job")
	reg.Complete(job.ID, jobs.Result{Generated: []string{"st-1"}})

	got, _ := reg.Get(job.ID)
	got.Result.Generated[0] = "mutated"
	got.Status = jobs.StatusFailed

	again, _ := reg.Get(job.ID)
	assert.Equal(t, jobs.StatusCompleted, again.Status)
	assert.Equal(t, "st-1", again.Result.Generated[0])
}

func TestMemoryRegistry_ExpiresFinishedJobs(t *testing.T) {
	reg := jobs.NewMemoryRegistry()

	finished := reg.Create("test_job")
	reg.Complete(finished.ID, jobs.Result{})
	running := reg.Create("test_job")
	reg.SetProcessing(running.ID, 1)

	reg.Expire(time.Now().UTC().Add(jobs.Retention + time.Minute))

	_, ok := reg.Get(finished.ID)
	assert.False(t, ok, "finished job past retention must be discarded")
	_, ok = reg.Get(running.ID)
	assert.True(t, ok, "running jobs are never expired")
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

func TestGenerateAllOwners_RejectsInvalidParams(t *testing.T) {
	orch := jobs.NewOrchestrator(memstore.NewMemory(), statement.FeeConfig{})

	_, err := orch.GenerateAllOwners(jobs.AllOwnersParams{
		Period:          statement.Period{Start: d("2024-03-31"), End: d("2024-03-01")},
		CalculationType: statement.CalcCheckout,
	})
	assert.ErrorIs(t, err, statement.ErrInvalidPeriod)

	_, err = orch.GenerateAllOwners(jobs.AllOwnersParams{
		Period:          statement.Period{Start: d("2024-03-01"), End: d("2024-03-31")},
		CalculationType: statement.CalculationType("bogus"),
	})
	assert.ErrorIs(t, err, statement.ErrInvalidCalculationType)
}

func TestGenerateAllOwners_FanOut(t *testing.T) {
	store := memstore.NewMemory()
	store.AddOwner(statement.Owner{ID: "owner-1", Name: "Alice", Role: statement.RoleOwner})
	store.AddOwner(statement.Owner{ID: "owner-2", Name: "Bob", Role: statement.RoleOwner})
	store.AddOwner(statement.Owner{ID: "admin-1", Name: "Admin", Role: "admin"})

	// owner-1: activity in March. owner-2: active but idle. admin-1 and the
	// inactive listing are out of scope entirely.
	store.AddListing(statement.Listing{ID: "prop-1", OwnerID: "owner-1", Active: true})
	store.AddListing(statement.Listing{ID: "prop-2", OwnerID: "owner-2", Active: true})
	store.AddListing(statement.Listing{ID: "prop-3", OwnerID: "owner-1", Active: false})
	store.AddListing(statement.Listing{ID: "prop-4", OwnerID: "admin-1", Active: true})

	store.AddReservation(statement.SourceReservation{
		ID: "r1", PropertyID: "prop-1",
		GuestName: "Guest",
		CheckIn:   d("2024-03-05"), CheckOut: d("2024-03-10"),
		GrossAmount: statement.MustMoney("1000"),
		Status:      statement.ReservationActive,
	})

	orch := jobs.NewOrchestrator(store, statement.FeeConfig{})
	queued, err := orch.GenerateAllOwners(marchParams())
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusQueued, queued.Status)

	job := waitForJob(t, orch.Jobs, queued.ID)
	require.Equal(t, jobs.StatusCompleted, job.Status)
	require.NotNil(t, job.Result)

	assert.Len(t, job.Result.Generated, 1)
	assert.Equal(t, []string{"prop-2"}, job.Result.Skipped)
	assert.Empty(t, job.Result.Errors)
	assert.Equal(t, 2, job.Total)
	assert.Equal(t, job.Total, job.Progress)

	// The generated statement is persisted and attributed to owner-1.
	stored, err := store.GetStatement(context.Background(), job.Result.Generated[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"owner-1"}, stored.OwnerIDs)
	assert.Equal(t, []string{"prop-1"}, stored.PropertyIDs)
}

func TestGenerateAllOwners_EmptyCatalogCompletes(t *testing.T) {
	orch := jobs.NewOrchestrator(memstore.NewMemory(), statement.FeeConfig{})

	queued, err := orch.GenerateAllOwners(marchParams())
	require.NoError(t, err)

	job := waitForJob(t, orch.Jobs, queued.ID)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 0, job.Total)
	assert.Empty(t, job.Result.Generated)
}
