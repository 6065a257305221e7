package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LISTING / GROUP / OWNER - Configuration referenced by statements
// =============================================================================
// Statements reference listings and groups by id; they are never embedded.

// DefaultPMFeePercent applies when a listing has no configured commission.
var DefaultPMFeePercent = decimal.NewFromInt(15)

type Listing struct {
	ID           string
	Name         string
	InternalName string
	OwnerID      string

	// Zero means unset; EffectivePMFee falls back to the default.
	PMFeePercent decimal.Decimal

	// The owner collects platform revenue directly; only PM commission
	// is billed on this listing.
	CohostOnAirbnb bool

	// At most one group per listing.
	GroupID string

	Tags   []string
	Active bool
}

// EffectivePMFee returns the listing's commission percentage, defaulting
// to DefaultPMFeePercent when unset.
func (l Listing) EffectivePMFee() decimal.Decimal {
	if l.PMFeePercent.IsZero() {
		return DefaultPMFeePercent
	}
	return l.PMFeePercent
}

type ListingGroup struct {
	ID              string
	Name            string
	Tags            []string
	CalculationType CalculationType
	ListingIDs      []string
}

type Owner struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// RoleOwner is the role required for bulk statement generation.
const RoleOwner = "owner"

// =============================================================================
// FEE CSV IMPORT
// =============================================================================

// FeeImportRow is one parsed line of a commission import file.
type FeeImportRow struct {
	ListingID    string
	Name         string
	InternalName string
	PMFeePercent decimal.Decimal
}

// ParseFeeCSV parses a bulk commission import: one `id,name,internalName,pm%`
// row per listing, with an optional header row. Rows with a blank id are
// skipped; a malformed percentage fails the whole import so a partial
// configuration is never applied.
func ParseFeeCSV(r io.Reader) ([]FeeImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []FeeImportRow
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fee csv line %d: %w", line+1, err)
		}
		line++

		if len(record) < 4 {
			return nil, fmt.Errorf("fee csv line %d: expected 4 columns, got %d", line, len(record))
		}

		id := strings.TrimSpace(record[0])
		if id == "" {
			continue
		}
		if line == 1 && looksLikeHeader(record) {
			continue
		}

		pctText := strings.TrimSuffix(strings.TrimSpace(record[3]), "%")
		pct, err := decimal.NewFromString(pctText)
		if err != nil {
			return nil, fmt.Errorf("fee csv line %d: invalid pm%% %q", line, record[3])
		}
		if pct.IsNegative() {
			return nil, fmt.Errorf("fee csv line %d: negative pm%% %q", line, record[3])
		}

		rows = append(rows, FeeImportRow{
			ListingID:    id,
			Name:         strings.TrimSpace(record[1]),
			InternalName: strings.TrimSpace(record[2]),
			PMFeePercent: pct,
		})
	}
	return rows, nil
}

func looksLikeHeader(record []string) bool {
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "id" || first == "listing_id" || first == "listingid"
}
