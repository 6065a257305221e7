/*
dto.go - Request and response types for the statement API

PURPOSE:
  Defines the JSON structures for API communication. Statements, jobs and
  generation runs serialize directly from their domain types (they carry
  json tags); this file holds the request bodies and the small wrappers
  that have no domain counterpart.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - statement/types.go: Statement json contract
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
)

// =============================================================================
// GENERATION
// =============================================================================

// GenerateRequest asks for statement generation. Exactly one target form
// applies: owner_id (optionally narrowed to one property_id), listing_ids,
// group_id, or all_owners.
type GenerateRequest struct {
	OwnerID    string   `json:"owner_id,omitempty"`
	PropertyID string   `json:"property_id,omitempty"`
	ListingIDs []string `json:"listing_ids,omitempty"`
	GroupID    string   `json:"group_id,omitempty"`
	AllOwners  bool     `json:"all_owners,omitempty"`

	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`

	CalculationType        string `json:"calculation_type"`
	CleaningFeePassThrough bool   `json:"cleaning_fee_pass_through,omitempty"`
	Finalize               bool   `json:"finalize,omitempty"`
}

// JobQueuedResponse acknowledges an accepted bulk generation.
type JobQueuedResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// =============================================================================
// EDITS
// =============================================================================

// ItemVisibilityRequest toggles one line item by its global index.
type ItemVisibilityRequest struct {
	Index  int  `json:"index"`
	Hidden bool `json:"hidden"`
}

// ItemUpdateRequest patches one line item; absent fields stay unchanged.
type ItemUpdateRequest struct {
	Index       int              `json:"index"`
	Date        *string          `json:"date,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

// CustomReservationRequest attaches a caller-defined reservation.
type CustomReservationRequest struct {
	PropertyID  string          `json:"property_id"`
	GuestName   string          `json:"guest_name"`
	CheckIn     string          `json:"check_in"`
	CheckOut    string          `json:"check_out"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	CleaningFee decimal.Decimal `json:"cleaning_fee"`
}

// CancelledReservationRequest attaches a cancelled reservation, optionally
// overriding its amount (typically to zero).
type CancelledReservationRequest struct {
	SourceID string           `json:"source_id"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

// EditStatementRequest batches edit operations; all are validated before
// any is applied.
type EditStatementRequest struct {
	ItemVisibility        []ItemVisibilityRequest       `json:"item_visibility,omitempty"`
	ItemUpdates           []ItemUpdateRequest           `json:"item_updates,omitempty"`
	AddReservations       []string                      `json:"add_reservations,omitempty"`
	RemoveReservations    []string                      `json:"remove_reservations,omitempty"`
	CustomReservation     *CustomReservationRequest     `json:"custom_reservation,omitempty"`
	CancelledReservations []CancelledReservationRequest `json:"cancelled_reservations,omitempty"`
	CleaningFeeUpdates    map[string]decimal.Decimal    `json:"cleaning_fee_updates,omitempty"`
}

// ReconfigureRequest changes a statement's period and/or calculation mode.
// Manual edits are re-applied on top of the rebuild.
type ReconfigureRequest struct {
	PeriodStart     string `json:"period_start"`
	PeriodEnd       string `json:"period_end"`
	CalculationType string `json:"calculation_type"`
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// PayoutStatusRequest updates the payout tracking state.
type PayoutStatusRequest struct {
	PayoutStatus string `json:"payout_status"`
}

// NotesRequest updates the internal notes.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// =============================================================================
// FEE IMPORT
// =============================================================================

// FeeImportResponse summarizes a bulk commission import.
type FeeImportResponse struct {
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (r EditStatementRequest) toDomain() (statement.EditRequest, error) {
	out := statement.EditRequest{
		ReservationIDsToAdd:    r.AddReservations,
		ReservationIDsToRemove: r.RemoveReservations,
		CleaningFeeUpdates:     r.CleaningFeeUpdates,
	}
	for _, v := range r.ItemVisibility {
		out.ItemVisibility = append(out.ItemVisibility, statement.ItemVisibilityUpdate{
			GlobalIndex: v.Index,
			Hidden:      v.Hidden,
		})
	}
	for _, u := range r.ItemUpdates {
		upd := statement.ItemFieldUpdate{
			GlobalIndex: u.Index,
			Description: u.Description,
			Category:    u.Category,
			Amount:      u.Amount,
		}
		if u.Date != nil {
			d, err := statement.ParseDate(*u.Date)
			if err != nil {
				return out, err
			}
			upd.Date = &d
		}
		out.ItemUpdates = append(out.ItemUpdates, upd)
	}
	if r.CustomReservation != nil {
		checkIn, err := statement.ParseDate(r.CustomReservation.CheckIn)
		if err != nil {
			return out, err
		}
		checkOut, err := statement.ParseDate(r.CustomReservation.CheckOut)
		if err != nil {
			return out, err
		}
		out.CustomReservation = &statement.CustomReservation{
			PropertyID:  r.CustomReservation.PropertyID,
			GuestName:   r.CustomReservation.GuestName,
			CheckIn:     checkIn,
			CheckOut:    checkOut,
			GrossAmount: r.CustomReservation.GrossAmount,
			CleaningFee: r.CustomReservation.CleaningFee,
		}
	}
	for _, c := range r.CancelledReservations {
		out.CancelledReservations = append(out.CancelledReservations, statement.CancelledAddition{
			SourceID: c.SourceID,
			Amount:   c.Amount,
		})
	}
	return out, nil
}

func parsePeriod(startText, endText string) (statement.Period, error) {
	start, err := statement.ParseDate(startText)
	if err != nil {
		return statement.Period{}, err
	}
	end, err := statement.ParseDate(endText)
	if err != nil {
		return statement.Period{}, err
	}
	return statement.Period{Start: start, End: end}, nil
}
