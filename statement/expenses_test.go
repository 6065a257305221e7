package statement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnovakovic099/owner-statements-app-complete-sub009/statement"
)

func expense(id, propertyID, date, amount string, llCover bool) statement.SourceExpense {
	return statement.SourceExpense{
		ID:          id,
		PropertyID:  propertyID,
		Type:        statement.ItemExpense,
		Date:        d(date),
		Description: "Expense " + id,
		Category:    "maintenance",
		Amount:      statement.MustMoney(amount),
		LLCover:     llCover,
	}
}

func TestClassifyExpenses_VisibleByDefault(t *testing.T) {
	items := statement.ClassifyExpenses(
		[]statement.SourceExpense{expense("e1", "prop-1", "2024-03-10", "120", false)},
		statement.BilledIndex{})

	require.Len(t, items, 1)
	assert.False(t, items[0].Hidden)
	assert.Equal(t, statement.HiddenNone, items[0].HiddenReason)
}

func TestClassifyExpenses_LLCoverHidden(t *testing.T) {
	items := statement.ClassifyExpenses(
		[]statement.SourceExpense{expense("e1", "prop-1", "2024-03-10", "120", true)},
		statement.BilledIndex{})

	require.Len(t, items, 1)
	assert.True(t, items[0].Hidden)
	assert.Equal(t, statement.HiddenLLCover, items[0].HiddenReason)
	assert.Empty(t, items[0].PriorStatementID)
}

func TestClassifyExpenses_PriorStatementBeatsLLCover(t *testing.T) {
	billed := statement.BilledIndex{
		{PropertyID: "prop-1", SourceID: "e1"}: {
			StatementID: "st-prior",
			Period:      period("2024-02-15", "2024-03-05"),
		},
	}

	// LL cover is set too; the prior-statement rule wins.
	items := statement.ClassifyExpenses(
		[]statement.SourceExpense{expense("e1", "prop-1", "2024-03-01", "120", true)},
		billed)

	require.Len(t, items, 1)
	assert.True(t, items[0].Hidden)
	assert.Equal(t, statement.HiddenPriorStatement, items[0].HiddenReason)
	assert.Equal(t, "st-prior", items[0].PriorStatementID)
	require.NotNil(t, items[0].PriorPeriod)
	assert.Equal(t, "2024-02-15", items[0].PriorPeriod.Start.String())
}

func TestClassifyExpenses_KeyIsPerProperty(t *testing.T) {
	// Same source id on a different property is not the same record.
	billed := statement.BilledIndex{
		{PropertyID: "prop-2", SourceID: "e1"}: {StatementID: "st-prior"},
	}

	items := statement.ClassifyExpenses(
		[]statement.SourceExpense{expense("e1", "prop-1", "2024-03-10", "120", false)},
		billed)

	require.Len(t, items, 1)
	assert.False(t, items[0].Hidden)
}

func TestClassifyExpenses_NeverManual(t *testing.T) {
	items := statement.ClassifyExpenses(
		[]statement.SourceExpense{
			expense("e1", "prop-1", "2024-03-10", "120", false),
			expense("e2", "prop-1", "2024-03-11", "80", true),
		},
		statement.BilledIndex{})

	for _, item := range items {
		assert.NotEqual(t, statement.HiddenManual, item.HiddenReason)
	}
}
