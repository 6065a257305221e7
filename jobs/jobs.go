/*
Package jobs runs long statement fan-outs outside the request/response
cycle.

PURPOSE:
  A bulk request ("generate for all owners") can cover hundreds of
  (owner, property) pairs. The orchestrator accepts the work, returns a
  pollable job id immediately, and processes units in a background
  goroutine with per-unit progress and per-item error isolation: one
  property's failure never aborts the batch.

JOB REGISTRY:
  Jobs live in an in-process registry behind a small store interface
  (create/get/update/expire) so it can later be swapped for a durable
  queue without touching orchestration logic. The registry is ephemeral
  and explicitly NOT a system of record - the Statements a job creates
  are. Completed jobs are retained for one hour, then discarded.
*/
package jobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/metrics"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
)

// =============================================================================
// JOB MODEL
// =============================================================================

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ItemError records one isolated per-target failure.
type ItemError struct {
	OwnerID    string `json:"owner_id"`
	PropertyID string `json:"property_id"`
	Message    string `json:"message"`
}

// Result summarizes a completed fan-out. It carries statement ids, never
// the statements themselves.
type Result struct {
	Generated []string    `json:"generated"`
	Skipped   []string    `json:"skipped"`
	Errors    []ItemError `json:"errors"`
}

type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// =============================================================================
// REGISTRY - Job store abstraction
// =============================================================================

// Registry is the job store. Implementations must be safe for concurrent
// use by the orchestrator and pollers.
type Registry interface {
	Create(jobType string) *Job
	Get(id string) (*Job, bool)
	SetProcessing(id string, total int)
	UpdateProgress(id string, progress int)
	Complete(id string, result Result)
	Fail(id string, err error)
	Expire(now time.Time)
}

// Retention is how long finished jobs stay pollable.
const Retention = time.Hour

// MemoryRegistry is the in-process Registry. Lost on restart.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]*Job)}
}

func (r *MemoryRegistry) Create(jobType string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	r.jobs[job.ID] = job
	return copyJob(job)
}

func (r *MemoryRegistry) Get(id string) (*Job, bool) {
	r.Expire(time.Now().UTC())
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return copyJob(job), true
}

func (r *MemoryRegistry) SetProcessing(id string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		now := time.Now().UTC()
		job.Status = StatusProcessing
		job.Total = total
		job.StartedAt = &now
	}
}

func (r *MemoryRegistry) UpdateProgress(id string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok && progress > job.Progress {
		job.Progress = progress
	}
}

func (r *MemoryRegistry) Complete(id string, result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		now := time.Now().UTC()
		job.Status = StatusCompleted
		job.CompletedAt = &now
		job.Result = &result
	}
}

func (r *MemoryRegistry) Fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		now := time.Now().UTC()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = err.Error()
	}
}

// Expire discards jobs whose retention window has passed.
func (r *MemoryRegistry) Expire(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		if job.CompletedAt != nil && now.Sub(*job.CompletedAt) > Retention {
			delete(r.jobs, id)
		}
	}
}

func copyJob(job *Job) *Job {
	c := *job
	if job.Result != nil {
		result := Result{
			Generated: append([]string(nil), job.Result.Generated...),
			Skipped:   append([]string(nil), job.Result.Skipped...),
			Errors:    append([]ItemError(nil), job.Result.Errors...),
		}
		c.Result = &result
	}
	return &c
}

// =============================================================================
// ORCHESTRATOR - Bulk fan-out
// =============================================================================

const TypeGenerateAllOwners = "generate_all_owners"

type Orchestrator struct {
	Jobs    Registry
	Store   statement.Store
	Builder *statement.Builder
}

func NewOrchestrator(store statement.Store, fees statement.FeeConfig) *Orchestrator {
	return &Orchestrator{
		Jobs:    NewMemoryRegistry(),
		Store:   store,
		Builder: statement.NewBuilder(store, fees),
	}
}

// AllOwnersParams configures a bulk generation.
type AllOwnersParams struct {
	Period                 statement.Period
	CalculationType        statement.CalculationType
	CleaningFeePassThrough bool
}

// GenerateAllOwners accepts a bulk fan-out and returns the queued job
// immediately. The caller polls the registry for progress and the final
// summary. Jobs have no cancellation; once started they run to completion
// or failure.
func (o *Orchestrator) GenerateAllOwners(params AllOwnersParams) (*Job, error) {
	if !params.Period.Valid() {
		return nil, statement.ErrInvalidPeriod
	}
	if !params.CalculationType.Valid() {
		return nil, statement.ErrInvalidCalculationType
	}

	job := o.Jobs.Create(TypeGenerateAllOwners)
	go o.runAllOwners(job.ID, params)
	return job, nil
}

// unit is one (owner, property) pair of the fan-out.
type unit struct {
	owner   statement.Owner
	listing statement.Listing
}

func (o *Orchestrator) runAllOwners(jobID string, params AllOwnersParams) {
	ctx := context.Background()
	start := time.Now()
	log := slog.With("job_id", jobID, "type", TypeGenerateAllOwners)

	units, err := o.collectUnits(ctx)
	if err != nil {
		log.Error("bulk generation failed to enumerate targets", "error", err)
		o.Jobs.Fail(jobID, err)
		return
	}

	o.Jobs.SetProcessing(jobID, len(units))
	log.Info("bulk generation started", "targets", len(units))

	result := Result{
		Generated: []string{},
		Skipped:   []string{},
		Errors:    []ItemError{},
	}

	for i, u := range units {
		st, err := o.Builder.Build(ctx, statement.BuildRequest{
			Listings:               []statement.Listing{u.listing},
			Period:                 params.Period,
			CalculationType:        params.CalculationType,
			CleaningFeePassThrough: params.CleaningFeePassThrough,
			SkipIfEmpty:            true,
			Persist:                true,
		})
		switch {
		case err == nil:
			result.Generated = append(result.Generated, st.ID)
			metrics.StatementsGenerated.WithLabelValues("bulk").Inc()
		case statement.IsSkip(err):
			result.Skipped = append(result.Skipped, u.listing.ID)
			metrics.StatementsSkipped.WithLabelValues("bulk").Inc()
		default:
			// Isolation: one property's failure never aborts the batch.
			result.Errors = append(result.Errors, ItemError{
				OwnerID:    u.owner.ID,
				PropertyID: u.listing.ID,
				Message:    err.Error(),
			})
			metrics.GenerationErrors.WithLabelValues("bulk").Inc()
			log.Warn("bulk generation unit failed",
				"owner_id", u.owner.ID, "property_id", u.listing.ID, "error", err)
		}
		o.Jobs.UpdateProgress(jobID, i+1)
	}

	o.Jobs.Complete(jobID, result)
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	log.Info("bulk generation completed",
		"generated", len(result.Generated),
		"skipped", len(result.Skipped),
		"errors", len(result.Errors),
		"duration", time.Since(start))
}

// collectUnits enumerates (owner, active property) pairs in a stable,
// deterministic order.
func (o *Orchestrator) collectUnits(ctx context.Context) ([]unit, error) {
	owners, err := o.Store.ListOwners(ctx)
	if err != nil {
		return nil, err
	}
	listings, err := o.Store.ListListings(ctx)
	if err != nil {
		return nil, err
	}

	ownersByID := make(map[string]statement.Owner, len(owners))
	for _, owner := range owners {
		if owner.Role == statement.RoleOwner {
			ownersByID[owner.ID] = owner
		}
	}

	var units []unit
	for _, listing := range listings {
		owner, ok := ownersByID[listing.OwnerID]
		if !ok || !listing.Active {
			continue
		}
		units = append(units, unit{owner: owner, listing: listing})
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].owner.ID != units[j].owner.ID {
			return units[i].owner.ID < units[j].owner.ID
		}
		return units[i].listing.ID < units[j].listing.ID
	})
	return units, nil
}
