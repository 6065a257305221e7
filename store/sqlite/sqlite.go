/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements statement.Store using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  statements:           Statement aggregates (document column + query columns)
  statement_properties: Statement-to-property links for overlap queries
  statement_owners:     Statement-to-owner links for list filters
  listings:             Listing configuration (pm%, cohost, group, tags)
  listing_groups:       Group configuration
  owners:               Owner records
  reservations:         Normalized reservation source records
  expenses:             Normalized expense/upsell source records
  generation_runs:      Scheduled generation audit trail

DOCUMENT STORAGE:
  The Statement aggregate (items, reservations, totals, edit deltas) is
  stored as one JSON document plus extracted columns for the queries the
  engine needs: period overlap, status, owner/property filters, and the
  optimistic version check. Line items and reservation refs are owned by
  the statement and never referenced externally, so normalizing them into
  child tables would buy nothing.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety plus WAL mode. Optimistic updates
  compare-and-swap on the version column.

USAGE:
  store, err := sqlite.New("./data/statements.db")  // or ":memory:"

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
)

// Store implements statement.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS statements (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		payout_status TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);

	-- Overlap lookups are the dedup hot path.
	CREATE INDEX IF NOT EXISTS idx_statements_period
		ON statements(period_start, period_end);
	CREATE INDEX IF NOT EXISTS idx_statements_status
		ON statements(status);

	CREATE TABLE IF NOT EXISTS statement_properties (
		statement_id TEXT NOT NULL,
		property_id TEXT NOT NULL,
		PRIMARY KEY (statement_id, property_id)
	);
	CREATE INDEX IF NOT EXISTS idx_statement_properties_property
		ON statement_properties(property_id);

	CREATE TABLE IF NOT EXISTS statement_owners (
		statement_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		PRIMARY KEY (statement_id, owner_id)
	);
	CREATE INDEX IF NOT EXISTS idx_statement_owners_owner
		ON statement_owners(owner_id);

	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		internal_name TEXT,
		owner_id TEXT,
		pm_fee_percent TEXT NOT NULL DEFAULT '0',
		cohost_on_airbnb INTEGER NOT NULL DEFAULT 0,
		group_id TEXT,
		tags_json TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id);
	CREATE INDEX IF NOT EXISTS idx_listings_group ON listings(group_id);

	CREATE TABLE IF NOT EXISTS listing_groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tags_json TEXT NOT NULL DEFAULT '[]',
		calculation_type TEXT NOT NULL,
		listing_ids_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS owners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT NOT NULL,
		property_id TEXT NOT NULL,
		guest_name TEXT,
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		gross_amount TEXT NOT NULL,
		cleaning_fee TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (property_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_reservations_property_dates
		ON reservations(property_id, check_in, check_out);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT NOT NULL,
		property_id TEXT NOT NULL,
		item_type TEXT NOT NULL,
		expense_date TEXT NOT NULL,
		description TEXT,
		category TEXT,
		amount TEXT NOT NULL,
		ll_cover INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (property_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_expenses_property_date
		ON expenses(property_id, expense_date);

	CREATE TABLE IF NOT EXISTS generation_runs (
		id TEXT PRIMARY KEY,
		tag TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		generated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		errors_json TEXT NOT NULL DEFAULT '[]',
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_generation_runs_tag
		ON generation_runs(tag, period_end);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STATEMENT STORE
// =============================================================================

func (s *Store) SaveStatement(ctx context.Context, st *statement.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal statement: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statements (id, status, payout_status, period_start, period_end, version, created_at, doc_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, string(st.Status), string(st.PayoutStatus),
		st.PeriodStart.String(), st.PeriodEnd.String(),
		st.Version, st.CreatedAt.Format(time.RFC3339), string(doc))
	if err != nil {
		return err
	}
	if err := insertLinks(ctx, tx, st); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetStatement(ctx context.Context, id string) (*statement.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_json FROM statements WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, statement.ErrStatementNotFound
	}
	if err != nil {
		return nil, err
	}
	return unmarshalStatement(doc)
}

func (s *Store) UpdateStatement(ctx context.Context, st *statement.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal statement: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE statements
		SET status = ?, payout_status = ?, period_start = ?, period_end = ?, version = ?, doc_json = ?
		WHERE id = ? AND version = ?`,
		string(st.Status), string(st.PayoutStatus),
		st.PeriodStart.String(), st.PeriodEnd.String(),
		st.Version, string(doc), st.ID, st.Version-1)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM statements WHERE id = ?`, st.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return statement.ErrStatementNotFound
		}
		return statement.ErrVersionConflict
	}

	// Property/owner sets can change on reconfigure; refresh the links.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM statement_properties WHERE statement_id = ?`, st.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM statement_owners WHERE statement_id = ?`, st.ID); err != nil {
		return err
	}
	if err := insertLinks(ctx, tx, st); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteStatement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM statements WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return statement.ErrStatementNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM statement_properties WHERE statement_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM statement_owners WHERE statement_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListStatements(ctx context.Context, filter statement.StatementFilter) ([]*statement.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT DISTINCT st.doc_json, st.created_at FROM statements st`
	var clauses []string
	var args []any

	if filter.PropertyID != "" {
		query += ` JOIN statement_properties sp ON sp.statement_id = st.id`
		clauses = append(clauses, `sp.property_id = ?`)
		args = append(args, filter.PropertyID)
	}
	if filter.OwnerID != "" {
		query += ` JOIN statement_owners so ON so.statement_id = st.id`
		clauses = append(clauses, `so.owner_id = ?`)
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		clauses = append(clauses, `st.status = ?`)
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY st.created_at DESC, st.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*statement.Statement
	for rows.Next() {
		var doc, createdAt string
		if err := rows.Scan(&doc, &createdAt); err != nil {
			return nil, err
		}
		st, err := unmarshalStatement(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) FindOverlapping(ctx context.Context, propertyIDs []string, period statement.Period) ([]*statement.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(propertyIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(propertyIDs)), ",")
	query := `
		SELECT DISTINCT st.doc_json FROM statements st
		JOIN statement_properties sp ON sp.statement_id = st.id
		WHERE sp.property_id IN (` + placeholders + `)
		  AND st.period_start <= ? AND st.period_end >= ?
		ORDER BY st.id`

	args := make([]any, 0, len(propertyIDs)+2)
	for _, id := range propertyIDs {
		args = append(args, id)
	}
	args = append(args, period.End.String(), period.Start.String())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*statement.Statement
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		st, err := unmarshalStatement(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func insertLinks(ctx context.Context, tx *sql.Tx, st *statement.Statement) error {
	for _, pid := range st.PropertyIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO statement_properties (statement_id, property_id) VALUES (?, ?)`,
			st.ID, pid); err != nil {
			return err
		}
	}
	for _, oid := range st.OwnerIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO statement_owners (statement_id, owner_id) VALUES (?, ?)`,
			st.ID, oid); err != nil {
			return err
		}
	}
	return nil
}

func unmarshalStatement(doc string) (*statement.Statement, error) {
	var st statement.Statement
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return nil, fmt.Errorf("unmarshal statement: %w", err)
	}
	return &st, nil
}

// =============================================================================
// SOURCE STORE
// =============================================================================

func (s *Store) ReservationsOverlapping(ctx context.Context, propertyID string, period statement.Period) ([]statement.SourceReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, guest_name, check_in, check_out, gross_amount, cleaning_fee, status
		FROM reservations
		WHERE property_id = ? AND check_in <= ? AND check_out >= ?
		ORDER BY check_in, id`,
		propertyID, period.End.String(), period.Start.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []statement.SourceReservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetReservation(ctx context.Context, propertyID, id string) (*statement.SourceReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, guest_name, check_in, check_out, gross_amount, cleaning_fee, status
		FROM reservations WHERE property_id = ? AND id = ?`, propertyID, id)

	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, statement.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveReservation upserts a normalized reservation record. Provider syncs
// call this repeatedly as booking data changes upstream.
func (s *Store) SaveReservation(ctx context.Context, r statement.SourceReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, property_id, guest_name, check_in, check_out, gross_amount, cleaning_fee, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(property_id, id) DO UPDATE SET
			guest_name = excluded.guest_name,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			gross_amount = excluded.gross_amount,
			cleaning_fee = excluded.cleaning_fee,
			status = excluded.status`,
		r.ID, r.PropertyID, r.GuestName,
		r.CheckIn.String(), r.CheckOut.String(),
		r.GrossAmount.String(), r.CleaningFee.String(), string(r.Status))
	return err
}

func (s *Store) ExpensesForPeriod(ctx context.Context, propertyID string, period statement.Period) ([]statement.SourceExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, item_type, expense_date, description, category, amount, ll_cover
		FROM expenses
		WHERE property_id = ? AND expense_date >= ? AND expense_date <= ?
		ORDER BY expense_date, id`,
		propertyID, period.Start.String(), period.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []statement.SourceExpense
	for rows.Next() {
		var (
			e        statement.SourceExpense
			itemType string
			date     string
			amount   string
			llCover  int
		)
		if err := rows.Scan(&e.ID, &e.PropertyID, &itemType, &date, &e.Description, &e.Category, &amount, &llCover); err != nil {
			return nil, err
		}
		e.Type = statement.LineItemType(itemType)
		if e.Date, err = statement.ParseDate(date); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		e.LLCover = llCover != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveExpense upserts a normalized expense or upsell record.
func (s *Store) SaveExpense(ctx context.Context, e statement.SourceExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	llCover := 0
	if e.LLCover {
		llCover = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, property_id, item_type, expense_date, description, category, amount, ll_cover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(property_id, id) DO UPDATE SET
			item_type = excluded.item_type,
			expense_date = excluded.expense_date,
			description = excluded.description,
			category = excluded.category,
			amount = excluded.amount,
			ll_cover = excluded.ll_cover`,
		e.ID, e.PropertyID, string(e.Type), e.Date.String(),
		e.Description, e.Category, e.Amount.String(), llCover)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (statement.SourceReservation, error) {
	var (
		r                     statement.SourceReservation
		checkIn, checkOut     string
		gross, cleaning, stat string
	)
	if err := row.Scan(&r.ID, &r.PropertyID, &r.GuestName, &checkIn, &checkOut, &gross, &cleaning, &stat); err != nil {
		return r, err
	}
	var err error
	if r.CheckIn, err = statement.ParseDate(checkIn); err != nil {
		return r, err
	}
	if r.CheckOut, err = statement.ParseDate(checkOut); err != nil {
		return r, err
	}
	if r.GrossAmount, err = decimal.NewFromString(gross); err != nil {
		return r, err
	}
	if r.CleaningFee, err = decimal.NewFromString(cleaning); err != nil {
		return r, err
	}
	r.Status = statement.ReservationStatus(stat)
	return r, nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

func (s *Store) ListOwners(ctx context.Context) ([]statement.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, role FROM owners ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []statement.Owner
	for rows.Next() {
		var o statement.Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.Email, &o.Role); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SaveOwner upserts an owner record.
func (s *Store) SaveOwner(ctx context.Context, o statement.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owners (id, name, email, role) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, role = excluded.role`,
		o.ID, o.Name, o.Email, o.Role)
	return err
}

func (s *Store) ListListings(ctx context.Context) ([]statement.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, internal_name, owner_id, pm_fee_percent, cohost_on_airbnb, group_id, tags_json, active
		FROM listings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []statement.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetListing(ctx context.Context, id string) (*statement.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, internal_name, owner_id, pm_fee_percent, cohost_on_airbnb, group_id, tags_json, active
		FROM listings WHERE id = ?`, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, statement.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) SaveListing(ctx context.Context, l statement.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := json.Marshal(l.Tags)
	if err != nil {
		return err
	}
	cohost := 0
	if l.CohostOnAirbnb {
		cohost = 1
	}
	active := 0
	if l.Active {
		active = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listings (id, name, internal_name, owner_id, pm_fee_percent, cohost_on_airbnb, group_id, tags_json, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			internal_name = excluded.internal_name,
			owner_id = excluded.owner_id,
			pm_fee_percent = excluded.pm_fee_percent,
			cohost_on_airbnb = excluded.cohost_on_airbnb,
			group_id = excluded.group_id,
			tags_json = excluded.tags_json,
			active = excluded.active`,
		l.ID, l.Name, l.InternalName, l.OwnerID,
		l.PMFeePercent.String(), cohost, l.GroupID, string(tags), active)
	return err
}

func scanListing(row rowScanner) (statement.Listing, error) {
	var (
		l              statement.Listing
		pmFee          string
		cohost, active int
		tagsJSON       string
	)
	if err := row.Scan(&l.ID, &l.Name, &l.InternalName, &l.OwnerID, &pmFee, &cohost, &l.GroupID, &tagsJSON, &active); err != nil {
		return l, err
	}
	var err error
	if l.PMFeePercent, err = decimal.NewFromString(pmFee); err != nil {
		return l, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &l.Tags); err != nil {
		return l, err
	}
	l.CohostOnAirbnb = cohost != 0
	l.Active = active != 0
	return l, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]statement.ListingGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tags_json, calculation_type, listing_ids_json
		FROM listing_groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []statement.ListingGroup
	for rows.Next() {
		var (
			g                 statement.ListingGroup
			calcType          string
			tagsJSON, idsJSON string
		)
		if err := rows.Scan(&g.ID, &g.Name, &tagsJSON, &calcType, &idsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &g.Tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(idsJSON), &g.ListingIDs); err != nil {
			return nil, err
		}
		g.CalculationType = statement.CalculationType(calcType)
		out = append(out, g)
	}
	return out, rows.Err()
}

// SaveGroup upserts a listing group.
func (s *Store) SaveGroup(ctx context.Context, g statement.ListingGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := json.Marshal(g.Tags)
	if err != nil {
		return err
	}
	ids, err := json.Marshal(g.ListingIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listing_groups (id, name, tags_json, calculation_type, listing_ids_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			tags_json = excluded.tags_json,
			calculation_type = excluded.calculation_type,
			listing_ids_json = excluded.listing_ids_json`,
		g.ID, g.Name, string(tags), string(g.CalculationType), string(ids))
	return err
}

// =============================================================================
// RUN STORE
// =============================================================================

func (s *Store) SaveGenerationRun(ctx context.Context, run statement.GenerationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return err
	}
	if run.Errors == nil {
		errorsJSON = []byte("[]")
	}
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.Format(time.RFC3339)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO generation_runs (id, tag, period_start, period_end, status, generated, skipped, errors_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			generated = excluded.generated,
			skipped = excluded.skipped,
			errors_json = excluded.errors_json,
			completed_at = excluded.completed_at`,
		run.ID, run.Tag, run.PeriodStart.String(), run.PeriodEnd.String(),
		run.Status, run.Generated, run.Skipped, string(errorsJSON),
		run.StartedAt.Format(time.RFC3339), completedAt)
	return err
}

func (s *Store) ListGenerationRuns(ctx context.Context, status string) ([]statement.GenerationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, tag, period_start, period_end, status, generated, skipped, errors_json, started_at, completed_at
		FROM generation_runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []statement.GenerationRun
	for rows.Next() {
		var (
			run                    statement.GenerationRun
			periodStart, periodEnd string
			errorsJSON, startedAt  string
			completedAt            sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Tag, &periodStart, &periodEnd, &run.Status,
			&run.Generated, &run.Skipped, &errorsJSON, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		if run.PeriodStart, err = statement.ParseDate(periodStart); err != nil {
			return nil, err
		}
		if run.PeriodEnd, err = statement.ParseDate(periodEnd); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339, completedAt.String)
			if err != nil {
				return nil, err
			}
			run.CompletedAt = &t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
