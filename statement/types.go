/*
Package statement implements the owner payout statement engine.

PURPOSE:
  This package turns a (target, period, calculation-mode) request into a
  persisted Statement: itemized revenue and expense line items plus derived
  payout totals. It contains the period arithmetic, revenue allocation,
  expense classification, fee calculation, statement assembly, post-hoc edit
  reconciliation, and duplicate prevention.

KEY CONCEPTS IN THIS FILE (types.go):
  - Statement: The central aggregate (single-property or combined/group)
  - LineItem: An expense/upsell entry with visibility audit state
  - ReservationRef: A reservation attached to a statement
  - Totals: Derived amounts, always recomputed and never hand-edited

DESIGN PRINCIPLES:
  1. Precision: All money uses decimal.Decimal; rounding happens once on sums
  2. Re-derivability: Totals are a pure function of the visible item set
  3. Auditability: Hidden items stay on the statement with a hide reason
  4. Closed enums: Item kinds and hide reasons are tagged variants, never
     inferred from field presence

SEE ALSO:
  - period.go: Cadence tags and reservation classification
  - builder.go: Statement assembly from source data
  - edit.go: Post-hoc mutations and recompute
*/
package statement

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Money returns a decimal dollar amount from a float. Intended for
// construction at the edges (API, seeds); internal math stays decimal.
func Money(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// MustMoney parses a decimal string, panicking on bad input. Test helper.
func MustMoney(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// roundCents rounds to whole cents. Applied once per summed total to avoid
// compounding per-item rounding error.
func roundCents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// =============================================================================
// ENUMS
// =============================================================================

// CalculationType selects how reservation revenue is recognized in a period.
type CalculationType string

const (
	// CalcCheckout recognizes the full gross amount of reservations whose
	// checkout date falls inside the period.
	CalcCheckout CalculationType = "checkout"

	// CalcCalendar prorates gross amounts by the fraction of a stay's nights
	// that fall inside the period.
	CalcCalendar CalculationType = "calendar"
)

func (c CalculationType) Valid() bool { return c == CalcCheckout || c == CalcCalendar }

// StatementStatus is the statement lifecycle stage.
type StatementStatus string

const (
	StatusDraft StatementStatus = "draft"
	StatusFinal StatementStatus = "final"
	StatusSent  StatementStatus = "sent"
)

// PayoutStatus tracks payment of the statement to the owner.
type PayoutStatus string

const (
	PayoutNone    PayoutStatus = "none"
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
	PayoutFailed  PayoutStatus = "failed"
)

// LineItemType distinguishes the two item kinds on a statement.
type LineItemType string

const (
	ItemExpense LineItemType = "expense"
	ItemUpsell  LineItemType = "upsell"
)

// HiddenReason records why a line item is excluded from totals.
type HiddenReason string

const (
	HiddenNone HiddenReason = "none"

	// HiddenManual: hidden by an explicit user edit.
	HiddenManual HiddenReason = "manual"

	// HiddenLLCover: company-covered expense, excluded from owner billing
	// by default.
	HiddenLLCover HiddenReason = "ll_cover"

	// HiddenPriorStatement: already billed on a finalized statement whose
	// period overlaps this one.
	HiddenPriorStatement HiddenReason = "prior_statement"
)

// ReservationStatus mirrors the normalized source record status.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
)

// CreatedBySystem marks statements produced by scheduled generation.
const CreatedBySystem = "System"

// =============================================================================
// LINE ITEM - Expense/upsell entry with visibility audit
// =============================================================================

type LineItem struct {
	Type        LineItemType    `json:"type"`
	SourceID    string          `json:"source_id,omitempty"`
	PropertyID  string          `json:"property_id"`
	Date        Date            `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`

	Hidden       bool         `json:"hidden"`
	HiddenReason HiddenReason `json:"hidden_reason"`

	// Set only when HiddenReason == HiddenPriorStatement.
	PriorStatementID string  `json:"prior_statement_id,omitempty"`
	PriorPeriod      *Period `json:"prior_period,omitempty"`
}

// =============================================================================
// RESERVATION REF - Reservation attached to a statement
// =============================================================================

type ReservationRef struct {
	SourceID    string            `json:"source_id,omitempty"`
	PropertyID  string            `json:"property_id"`
	GuestName   string            `json:"guest_name"`
	CheckIn     Date              `json:"check_in"`
	CheckOut    Date              `json:"check_out"`
	GrossAmount decimal.Decimal   `json:"gross_amount"`
	CleaningFee decimal.Decimal   `json:"cleaning_fee"`
	Status      ReservationStatus `json:"status"`

	// IsCustom reservations carry caller-supplied amounts and bypass
	// revenue allocation entirely.
	IsCustom bool `json:"is_custom"`

	// CohostExcluded: the owner collects this revenue directly on the
	// platform; it contributes to the commission base but not to revenue.
	CohostExcluded bool `json:"cohost_excluded"`

	// Effective commission percentage of the reservation's listing,
	// captured at attach time so totals stay re-derivable.
	PMFeePercent decimal.Decimal `json:"pm_fee_percent"`
}

// Nights returns the stay length. Zero-night records allocate nothing.
func (r ReservationRef) Nights() int { return DaysBetween(r.CheckIn, r.CheckOut) }

// =============================================================================
// TOTALS - Derived, always recomputed
// =============================================================================

type Totals struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	PMCommission  decimal.Decimal `json:"pm_commission"`
	TechFee       decimal.Decimal `json:"tech_fee"`
	InsuranceFee  decimal.Decimal `json:"insurance_fee"`
	CleaningFees  decimal.Decimal `json:"cleaning_fees"`
	OwnerPayout   decimal.Decimal `json:"owner_payout"`
}

// =============================================================================
// STATEMENT - The central aggregate
// =============================================================================

type Statement struct {
	ID          string   `json:"id"`
	OwnerIDs    []string `json:"owner_ids"`
	PropertyIDs []string `json:"property_ids"`

	// Set for combined/group statements.
	GroupID   string   `json:"group_id,omitempty"`
	GroupName string   `json:"group_name,omitempty"`
	GroupTags []string `json:"group_tags,omitempty"`

	PeriodStart     Date            `json:"period_start"`
	PeriodEnd       Date            `json:"period_end"`
	CalculationType CalculationType `json:"calculation_type"`

	Items        []LineItem       `json:"items"`
	Reservations []ReservationRef `json:"reservations"`
	Totals       Totals           `json:"totals"`

	Status       StatementStatus `json:"status"`
	PayoutStatus PayoutStatus    `json:"payout_status"`

	// True when every target listing is cohosted on the platform; the payout
	// line then reflects only the commission owed to the manager.
	CohostOnAirbnb bool `json:"cohost_on_airbnb"`

	CleaningFeePassThrough bool   `json:"cleaning_fee_pass_through"`
	InternalNotes          string `json:"internal_notes,omitempty"`
	CreatedBy              string `json:"created_by"`

	// Edit deltas, replayed on top of a reconfigure rebuild.
	ManuallyAddedReservations   []string `json:"manually_added_reservations,omitempty"`
	ManuallyRemovedReservations []string `json:"manually_removed_reservations,omitempty"`

	// Optimistic concurrency: Update rejects a stale version.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Period returns the statement's inclusive date range.
func (s *Statement) Period() Period {
	return Period{Start: s.PeriodStart, End: s.PeriodEnd}
}

// Clone returns a deep copy. Edits mutate a clone and persist it whole, so
// a failed edit never leaves a half-applied statement behind.
func (s *Statement) Clone() *Statement {
	c := *s
	c.OwnerIDs = append([]string(nil), s.OwnerIDs...)
	c.PropertyIDs = append([]string(nil), s.PropertyIDs...)
	c.GroupTags = append([]string(nil), s.GroupTags...)
	c.Reservations = append([]ReservationRef(nil), s.Reservations...)
	c.ManuallyAddedReservations = append([]string(nil), s.ManuallyAddedReservations...)
	c.ManuallyRemovedReservations = append([]string(nil), s.ManuallyRemovedReservations...)
	c.Items = make([]LineItem, len(s.Items))
	copy(c.Items, s.Items)
	for i := range c.Items {
		if s.Items[i].PriorPeriod != nil {
			period := *s.Items[i].PriorPeriod
			c.Items[i].PriorPeriod = &period
		}
	}
	return &c
}

// VisibleItems returns the line items that contribute to totals.
func (s *Statement) VisibleItems() []LineItem {
	visible := make([]LineItem, 0, len(s.Items))
	for _, item := range s.Items {
		if !item.Hidden {
			visible = append(visible, item)
		}
	}
	return visible
}

// FindReservation returns the index of a reservation by source id, or -1.
func (s *Statement) FindReservation(sourceID string) int {
	for i, r := range s.Reservations {
		if r.SourceID == sourceID {
			return i
		}
	}
	return -1
}

// IsLocked reports whether structural edits are blocked: the statement was
// sent to the owner or the payout already went out.
func (s *Statement) IsLocked() bool {
	return s.Status == StatusSent || s.PayoutStatus == PayoutPaid
}

// HasActivity reports whether the statement carries any qualifying content.
// Bulk generation skips (rather than persists) empty statements.
func (s *Statement) HasActivity() bool {
	return len(s.Reservations) > 0 || len(s.Items) > 0
}

// =============================================================================
// NORMALIZED SOURCE RECORDS
// =============================================================================
// The engine consumes already-normalized reservation and expense records;
// the third-party providers behind them are external collaborators.

type SourceReservation struct {
	ID          string
	PropertyID  string
	GuestName   string
	CheckIn     Date
	CheckOut    Date
	GrossAmount decimal.Decimal
	CleaningFee decimal.Decimal
	Status      ReservationStatus
}

type SourceExpense struct {
	ID          string
	PropertyID  string
	Type        LineItemType
	Date        Date
	Description string
	Category    string
	Amount      decimal.Decimal

	// Company-absorbed; excluded from owner billing by default.
	LLCover bool
}

// =============================================================================
// GENERATION RUN - Audit record for scheduled generation
// =============================================================================

type GenerationRun struct {
	ID          string
	Tag         string
	PeriodStart Date
	PeriodEnd   Date
	Status      string // running, completed, failed
	Generated   int
	Skipped     int
	Errors      []string
	StartedAt   time.Time
	CompletedAt *time.Time
}
