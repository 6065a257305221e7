/*
store.go - Persistence and source-data port interfaces

PURPOSE:
  The engine assumes a record store with create/read/update by id plus a
  query-by-overlapping-period capability, and normalized reservation and
  expense sources. These interfaces keep the engine independent of the
  storage technology; store/sqlite and statement/store (memory) implement
  them.
*/
package statement

import "context"

// StatementFilter narrows ListStatements.
type StatementFilter struct {
	OwnerID    string
	PropertyID string
	Status     StatementStatus
}

// StatementStore persists the Statement aggregate.
type StatementStore interface {
	// SaveStatement inserts a new statement.
	SaveStatement(ctx context.Context, st *Statement) error

	// GetStatement returns a statement by id, or ErrStatementNotFound.
	GetStatement(ctx context.Context, id string) (*Statement, error)

	// UpdateStatement replaces a statement. The stored version must equal
	// st.Version-1 or ErrVersionConflict is returned.
	UpdateStatement(ctx context.Context, st *Statement) error

	// DeleteStatement removes a statement by id.
	DeleteStatement(ctx context.Context, id string) error

	// ListStatements returns statements matching the filter, newest first.
	ListStatements(ctx context.Context, filter StatementFilter) ([]*Statement, error)

	// FindOverlapping returns statements for any of the given properties
	// whose period overlaps the given one.
	FindOverlapping(ctx context.Context, propertyIDs []string, period Period) ([]*Statement, error)
}

// SourceStore exposes the normalized provider records the engine consumes.
type SourceStore interface {
	// ReservationsOverlapping returns reservations for a property whose
	// stay overlaps the period (superset; classification filters by mode).
	ReservationsOverlapping(ctx context.Context, propertyID string, period Period) ([]SourceReservation, error)

	// GetReservation returns one reservation by id, or ErrReservationNotFound.
	GetReservation(ctx context.Context, propertyID, id string) (*SourceReservation, error)

	// ExpensesForPeriod returns expense/upsell records dated in the period.
	ExpensesForPeriod(ctx context.Context, propertyID string, period Period) ([]SourceExpense, error)
}

// CatalogStore holds listing, group and owner configuration.
type CatalogStore interface {
	ListOwners(ctx context.Context) ([]Owner, error)
	ListListings(ctx context.Context) ([]Listing, error)
	GetListing(ctx context.Context, id string) (*Listing, error)
	SaveListing(ctx context.Context, l Listing) error
	ListGroups(ctx context.Context) ([]ListingGroup, error)
}

// RunStore records scheduled generation runs for audit.
type RunStore interface {
	SaveGenerationRun(ctx context.Context, run GenerationRun) error
	ListGenerationRuns(ctx context.Context, status string) ([]GenerationRun, error)
}

// Store is the full persistence surface the engine is wired against.
type Store interface {
	StatementStore
	SourceStore
	CatalogStore
	RunStore
}
