/*
errors.go - Centralized error types for the statement engine

ERROR CATEGORIES:
  1. Skip - no qualifying activity; recorded in summaries, never raised to
     callers as a failure
  2. Validation errors - malformed input, stale indices, locked statements
  3. Source fetch errors - one upstream provider unavailable; isolated per
     target in bulk and scheduled contexts
  4. Persistence errors - fatal for the single operation in progress

USAGE:
  if errors.Is(err, statement.ErrNoActivity) { record skip }
  if statement.IsClientError(err) { respond 4xx }
*/
package statement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoActivity signals the skip rule: zero qualifying reservations and
	// zero qualifying expenses in the period. Not a failure.
	ErrNoActivity = errors.New("no qualifying activity in period")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidCalculationType is returned for an unknown calculation mode.
	ErrInvalidCalculationType = errors.New("invalid calculation type")

	// ErrStatementNotFound is returned when a referenced statement doesn't exist.
	ErrStatementNotFound = errors.New("statement not found")

	// ErrListingNotFound is returned when a referenced listing doesn't exist.
	ErrListingNotFound = errors.New("listing not found")

	// ErrReservationNotFound is returned when an id to add is absent from
	// the property's source data.
	ErrReservationNotFound = errors.New("reservation not found in source data")

	// ErrDuplicateReservation is returned when adding a reservation already
	// present on the statement.
	ErrDuplicateReservation = errors.New("reservation already on statement")

	// ErrDuplicateStatement is returned when a statement already exists for
	// the exact target and period.
	ErrDuplicateStatement = errors.New("statement already exists for target and period")

	// ErrStatementLocked is returned when structural edits hit a sent
	// statement or a paid payout.
	ErrStatementLocked = errors.New("statement is locked")

	// ErrStaleIndex is returned when a global item index no longer resolves
	// (stale client state).
	ErrStaleIndex = errors.New("stale item index")

	// ErrVersionConflict is returned when an optimistic update loses the race.
	ErrVersionConflict = errors.New("statement version conflict")

	// ErrDraftOnly is returned when deleting a non-draft statement.
	ErrDraftOnly = errors.New("operation allowed on draft statements only")

	// ErrFinalOnly is returned when sending a statement that was never
	// finalized. Sending registers billed records, so drafts must pass
	// through final first.
	ErrFinalOnly = errors.New("operation allowed on final statements only")

	// ErrOwnerNotFound is returned for an unknown owner id.
	ErrOwnerNotFound = errors.New("owner not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SourceFetchError wraps an upstream data source failure for one property.
// Bulk and scheduled generation isolate these per target.
type SourceFetchError struct {
	PropertyID string
	Err        error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source fetch failed for property %s: %v", e.PropertyID, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// StaleIndexError identifies which index failed to resolve.
type StaleIndexError struct {
	Index int
	Count int
}

func (e *StaleIndexError) Error() string {
	return fmt.Sprintf("item index %d out of range (statement has %d items)", e.Index, e.Count)
}

func (e *StaleIndexError) Unwrap() error { return ErrStaleIndex }

// LockedError identifies why a statement rejects structural edits.
type LockedError struct {
	StatementID  string
	Status       StatementStatus
	PayoutStatus PayoutStatus
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("statement %s is locked (status=%s, payout=%s)",
		e.StatementID, e.Status, e.PayoutStatus)
}

func (e *LockedError) Unwrap() error { return ErrStatementLocked }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsSkip reports whether the error is the no-activity skip signal.
func IsSkip(err error) bool { return errors.Is(err, ErrNoActivity) }

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidCalculationType) ||
		errors.Is(err, ErrStaleIndex) ||
		errors.Is(err, ErrStatementLocked) ||
		errors.Is(err, ErrDuplicateReservation) ||
		errors.Is(err, ErrDuplicateStatement) ||
		errors.Is(err, ErrDraftOnly) ||
		errors.Is(err, ErrFinalOnly)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStatementNotFound) ||
		errors.Is(err, ErrListingNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrOwnerNotFound)
}

// IsConflict reports errors that should surface as a conflict to callers.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
