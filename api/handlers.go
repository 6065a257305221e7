/*
handlers.go - HTTP API handlers for the statement engine

PURPOSE:
  Exposes the statement engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Generation:
    POST   /api/statements/generate       Generate one statement or fan out
    GET    /api/statements/jobs/{id}      Poll a bulk generation job

  Statements:
    GET    /api/statements                List statements (filterable)
    GET    /api/statements/{id}           Get one statement
    PUT    /api/statements/{id}/edit      Apply batched edits
    DELETE /api/statements/{id}           Delete a draft
    POST   /api/statements/{id}/reconfigure  Change period/mode, replay edits
    POST   /api/statements/{id}/finalize  Draft -> final
    POST   /api/statements/{id}/send      Final -> sent (locks edits)
    PUT    /api/statements/{id}/payout-status
    PUT    /api/statements/{id}/notes

  Configuration:
    GET    /api/listings                  List listings
    GET    /api/owners                    List owners
    GET    /api/groups                    List listing groups
    POST   /api/listings/import-fees      Bulk commission import (CSV body)

  Schedule:
    GET    /api/schedule/runs             Generation run audit trail
    POST   /api/schedule/trigger          Run the tag scheduler now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, locked statements
  - 404: Resource not found
  - 409: Duplicate statement, version conflict
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Tag-driven automatic generation
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/jobs"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/metrics"
	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     statement.Store
	Builder   *statement.Builder
	Edits     *statement.EditEngine
	Jobs      *jobs.Orchestrator
	Scheduler *TagScheduler
}

// NewHandler wires the handler against one store and fee configuration.
func NewHandler(store statement.Store, fees statement.FeeConfig, orch *jobs.Orchestrator, sched *TagScheduler) *Handler {
	return &Handler{
		Store:     store,
		Builder:   statement.NewBuilder(store, fees),
		Edits:     statement.NewEditEngine(store, fees),
		Jobs:      orch,
		Scheduler: sched,
	}
}

// =============================================================================
// GENERATION
// =============================================================================

// GenerateStatement generates a single or combined statement, or queues a
// bulk fan-out over every owner.
// POST /api/statements/generate
func (h *Handler) GenerateStatement(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period", err)
		return
	}
	mode := statement.CalculationType(req.CalculationType)
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "invalid calculation_type", nil)
		return
	}

	if req.PropertyID != "" && req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "property_id requires owner_id", nil)
		return
	}

	if req.AllOwners {
		if req.OwnerID != "" || len(req.ListingIDs) > 0 || req.GroupID != "" {
			writeError(w, http.StatusBadRequest, "all_owners excludes owner_id, listing_ids and group_id", nil)
			return
		}
		job, err := h.Jobs.GenerateAllOwners(jobs.AllOwnersParams{
			Period:                 period,
			CalculationType:        mode,
			CleaningFeePassThrough: req.CleaningFeePassThrough,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, JobQueuedResponse{
			JobID:     job.ID,
			Status:    string(job.Status),
			StatusURL: "/api/statements/jobs/" + job.ID,
		})
		return
	}

	build := statement.BuildRequest{
		Period:                 period,
		CalculationType:        mode,
		CleaningFeePassThrough: req.CleaningFeePassThrough,
		Finalize:               req.Finalize,
		Persist:                true,
	}

	switch {
	case req.OwnerID != "":
		if len(req.ListingIDs) > 0 || req.GroupID != "" {
			writeError(w, http.StatusBadRequest, "owner_id excludes listing_ids and group_id", nil)
			return
		}
		listings, err := h.resolveOwnerListings(r, req.OwnerID, req.PropertyID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		build.Listings = listings
	case req.GroupID != "":
		group, members, err := h.resolveGroup(r, req.GroupID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		build.Listings = members
		build.GroupID = group.ID
		build.GroupName = group.Name
		build.GroupTags = group.Tags
	case len(req.ListingIDs) > 0:
		listings, err := h.resolveListings(r, req.ListingIDs)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		build.Listings = listings
	default:
		writeError(w, http.StatusBadRequest, "no target: provide owner_id, listing_ids, group_id, or all_owners", nil)
		return
	}

	propertyIDs := make([]string, 0, len(build.Listings))
	for _, l := range build.Listings {
		propertyIDs = append(propertyIDs, l.ID)
	}
	exists, err := h.Builder.Guard.HasStatementFor(r.Context(), propertyIDs, period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if exists {
		writeDomainError(w, statement.ErrDuplicateStatement)
		return
	}

	st, err := h.Builder.Build(r.Context(), build)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.StatementsGenerated.WithLabelValues("api").Inc()
	writeJSON(w, http.StatusCreated, st)
}

// GetJob returns the state of a bulk generation job.
// GET /api/statements/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.Jobs.Jobs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found or expired", nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) resolveGroup(r *http.Request, groupID string) (*statement.ListingGroup, []statement.Listing, error) {
	groups, err := h.Store.ListGroups(r.Context())
	if err != nil {
		return nil, nil, err
	}
	for i := range groups {
		if groups[i].ID != groupID {
			continue
		}
		members, err := h.resolveListings(r, groups[i].ListingIDs)
		if err != nil {
			return nil, nil, err
		}
		return &groups[i], members, nil
	}
	return nil, nil, statement.ErrListingNotFound
}

func (h *Handler) resolveListings(r *http.Request, ids []string) ([]statement.Listing, error) {
	listings := make([]statement.Listing, 0, len(ids))
	for _, id := range ids {
		l, err := h.Store.GetListing(r.Context(), id)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, nil
}

// resolveOwnerListings returns the owner's active listings, narrowed to one
// property when propertyID is set.
func (h *Handler) resolveOwnerListings(r *http.Request, ownerID, propertyID string) ([]statement.Listing, error) {
	owners, err := h.Store.ListOwners(r.Context())
	if err != nil {
		return nil, err
	}
	known := false
	for _, o := range owners {
		if o.ID == ownerID {
			known = true
			break
		}
	}
	if !known {
		return nil, statement.ErrOwnerNotFound
	}

	all, err := h.Store.ListListings(r.Context())
	if err != nil {
		return nil, err
	}
	listings := make([]statement.Listing, 0, len(all))
	for _, l := range all {
		if l.OwnerID != ownerID || !l.Active {
			continue
		}
		if propertyID != "" && l.ID != propertyID {
			continue
		}
		listings = append(listings, l)
	}
	if len(listings) == 0 {
		return nil, statement.ErrListingNotFound
	}
	return listings, nil
}

// =============================================================================
// STATEMENT ENDPOINTS
// =============================================================================

// ListStatements lists statements, optionally filtered.
// GET /api/statements?owner_id=&property_id=&status=
func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	filter := statement.StatementFilter{
		OwnerID:    r.URL.Query().Get("owner_id"),
		PropertyID: r.URL.Query().Get("property_id"),
		Status:     statement.StatementStatus(r.URL.Query().Get("status")),
	}
	statements, err := h.Store.ListStatements(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if statements == nil {
		statements = []*statement.Statement{}
	}
	writeJSON(w, http.StatusOK, statements)
}

// GetStatement returns one statement with items, reservations and totals.
// GET /api/statements/{id}
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.GetStatement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// EditStatement applies a batch of edits and returns the recomputed
// statement.
// PUT /api/statements/{id}/edit
func (h *Handler) EditStatement(w http.ResponseWriter, r *http.Request) {
	var req EditStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	domain, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edit request", err)
		return
	}
	st, err := h.Edits.Edit(r.Context(), chi.URLParam(r, "id"), domain)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ReconfigureStatement rebuilds a statement for a new period or mode and
// replays the manual edits on top.
// POST /api/statements/{id}/reconfigure
func (h *Handler) ReconfigureStatement(w http.ResponseWriter, r *http.Request) {
	var req ReconfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period", err)
		return
	}
	mode := statement.CalculationType(req.CalculationType)
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "invalid calculation_type", nil)
		return
	}
	st, err := h.Edits.Reconfigure(r.Context(), chi.URLParam(r, "id"), period, mode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// FinalizeStatement moves a draft to final.
// POST /api/statements/{id}/finalize
func (h *Handler) FinalizeStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Edits.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SendStatement marks a statement sent, locking structural edits.
// POST /api/statements/{id}/send
func (h *Handler) SendStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Edits.MarkSent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// UpdatePayoutStatus updates payout tracking.
// PUT /api/statements/{id}/payout-status
func (h *Handler) UpdatePayoutStatus(w http.ResponseWriter, r *http.Request) {
	var req PayoutStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	status := statement.PayoutStatus(req.PayoutStatus)
	switch status {
	case statement.PayoutNone, statement.PayoutPending, statement.PayoutPaid, statement.PayoutFailed:
	default:
		writeError(w, http.StatusBadRequest, "invalid payout_status", nil)
		return
	}
	st, err := h.Edits.SetPayoutStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// UpdateNotes replaces the internal notes.
// PUT /api/statements/{id}/notes
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	st, err := h.Edits.SetNotes(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DeleteStatement removes a draft statement.
// DELETE /api/statements/{id}
func (h *Handler) DeleteStatement(w http.ResponseWriter, r *http.Request) {
	if err := h.Edits.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CONFIGURATION ENDPOINTS
// =============================================================================

// ListListings returns the listing catalog.
// GET /api/listings
func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.Store.ListListings(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if listings == nil {
		listings = []statement.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// ListGroups returns every listing group.
// GET /api/groups
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Store.ListGroups(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if groups == nil {
		groups = []statement.ListingGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// ListOwners returns the owner catalog.
// GET /api/owners
func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.Store.ListOwners(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if owners == nil {
		owners = []statement.Owner{}
	}
	writeJSON(w, http.StatusOK, owners)
}

// ImportFees applies a bulk commission import from a CSV request body.
// Unknown listing ids are reported, not failed; a malformed file rejects
// the whole import.
// POST /api/listings/import-fees
func (h *Handler) ImportFees(w http.ResponseWriter, r *http.Request) {
	rows, err := statement.ParseFeeCSV(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fee csv", err)
		return
	}

	resp := FeeImportResponse{}
	for _, row := range rows {
		listing, err := h.Store.GetListing(r.Context(), row.ListingID)
		if statement.IsNotFound(err) {
			resp.Skipped = append(resp.Skipped, row.ListingID)
			continue
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		listing.PMFeePercent = row.PMFeePercent
		if row.Name != "" {
			listing.Name = row.Name
		}
		if row.InternalName != "" {
			listing.InternalName = row.InternalName
		}
		if err := h.Store.SaveListing(r.Context(), *listing); err != nil {
			writeDomainError(w, err)
			return
		}
		resp.Updated++
	}

	slog.Info("fee import applied", "updated", resp.Updated, "skipped", len(resp.Skipped))
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SCHEDULE ENDPOINTS
// =============================================================================

// ListScheduleRuns returns the generation run audit trail.
// GET /api/schedule/runs?status=
func (h *Handler) ListScheduleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListGenerationRuns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if runs == nil {
		runs = []statement.GenerationRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// TriggerSchedule runs the tag scheduler immediately against today.
// POST /api/schedule/trigger
func (h *Handler) TriggerSchedule(w http.ResponseWriter, r *http.Request) {
	asOf := statement.DateOf(h.Scheduler.Clock.Now().In(h.Scheduler.Location))
	h.Scheduler.RunOnce(r.Context(), asOf)
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case statement.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case statement.IsConflict(err) || errors.Is(err, statement.ErrDuplicateStatement):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case statement.IsClientError(err) || statement.IsSkip(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
