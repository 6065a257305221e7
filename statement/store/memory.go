// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	statements map[string]*statement.Statement

	reservations map[string][]statement.SourceReservation // by property
	expenses     map[string][]statement.SourceExpense     // by property

	owners   map[string]statement.Owner
	listings map[string]statement.Listing
	groups   map[string]statement.ListingGroup

	runs []statement.GenerationRun
}

func NewMemory() *Memory {
	return &Memory{
		statements:   make(map[string]*statement.Statement),
		reservations: make(map[string][]statement.SourceReservation),
		expenses:     make(map[string][]statement.SourceExpense),
		owners:       make(map[string]statement.Owner),
		listings:     make(map[string]statement.Listing),
		groups:       make(map[string]statement.ListingGroup),
	}
}

// =============================================================================
// STATEMENT STORE
// =============================================================================

func (m *Memory) SaveStatement(_ context.Context, st *statement.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements[st.ID] = st.Clone()
	return nil
}

func (m *Memory) GetStatement(_ context.Context, id string) (*statement.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statements[id]
	if !ok {
		return nil, statement.ErrStatementNotFound
	}
	return st.Clone(), nil
}

func (m *Memory) UpdateStatement(_ context.Context, st *statement.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.statements[st.ID]
	if !ok {
		return statement.ErrStatementNotFound
	}
	if existing.Version != st.Version-1 {
		return statement.ErrVersionConflict
	}
	m.statements[st.ID] = st.Clone()
	return nil
}

func (m *Memory) DeleteStatement(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statements[id]; !ok {
		return statement.ErrStatementNotFound
	}
	delete(m.statements, id)
	return nil
}

func (m *Memory) ListStatements(_ context.Context, filter statement.StatementFilter) ([]*statement.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*statement.Statement
	for _, st := range m.statements {
		if filter.Status != "" && st.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && !containsString(st.OwnerIDs, filter.OwnerID) {
			continue
		}
		if filter.PropertyID != "" && !containsString(st.PropertyIDs, filter.PropertyID) {
			continue
		}
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) FindOverlapping(_ context.Context, propertyIDs []string, period statement.Period) ([]*statement.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(propertyIDs))
	for _, id := range propertyIDs {
		wanted[id] = true
	}

	var out []*statement.Statement
	for _, st := range m.statements {
		if !st.Period().Overlaps(period) {
			continue
		}
		for _, pid := range st.PropertyIDs {
			if wanted[pid] {
				out = append(out, st.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// SOURCE STORE
// =============================================================================

func (m *Memory) ReservationsOverlapping(_ context.Context, propertyID string, period statement.Period) ([]statement.SourceReservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []statement.SourceReservation
	for _, r := range m.reservations[propertyID] {
		stay := statement.Period{Start: r.CheckIn, End: r.CheckOut}
		if stay.Overlaps(period) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) GetReservation(_ context.Context, propertyID, id string) (*statement.SourceReservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reservations[propertyID] {
		if r.ID == id {
			found := r
			return &found, nil
		}
	}
	return nil, statement.ErrReservationNotFound
}

func (m *Memory) ExpensesForPeriod(_ context.Context, propertyID string, period statement.Period) ([]statement.SourceExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []statement.SourceExpense
	for _, e := range m.expenses[propertyID] {
		if period.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

func (m *Memory) ListOwners(_ context.Context) ([]statement.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]statement.Owner, 0, len(m.owners))
	for _, o := range m.owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListListings(_ context.Context) ([]statement.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]statement.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetListing(_ context.Context, id string) (*statement.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, statement.ErrListingNotFound
	}
	return &l, nil
}

func (m *Memory) SaveListing(_ context.Context, l statement.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
	return nil
}

func (m *Memory) ListGroups(_ context.Context) ([]statement.ListingGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]statement.ListingGroup, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// RUN STORE
// =============================================================================

func (m *Memory) SaveGenerationRun(_ context.Context, run statement.GenerationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.runs {
		if existing.ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListGenerationRuns(_ context.Context, status string) ([]statement.GenerationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []statement.GenerationRun
	for _, run := range m.runs {
		if status == "" || run.Status == status {
			out = append(out, run)
		}
	}
	return out, nil
}

// =============================================================================
// SEED HELPERS (dev/test)
// =============================================================================

func (m *Memory) AddOwner(o statement.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.ID] = o
}

func (m *Memory) AddListing(l statement.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
}

func (m *Memory) AddGroup(g statement.ListingGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
}

func (m *Memory) AddReservation(r statement.SourceReservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.PropertyID] = append(m.reservations[r.PropertyID], r)
}

func (m *Memory) AddExpense(e statement.SourceExpense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.PropertyID] = append(m.expenses[e.PropertyID], e)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
