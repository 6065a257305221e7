/*
expenses.go - Expense and upsell classification

PARTITION RULE (applied in priority order):
  1. Billed on a prior finalized overlapping statement -> hidden,
     reason prior_statement, with a reference to that statement
  2. LL Cover (company-absorbed)                       -> hidden, reason ll_cover
  3. Otherwise                                         -> visible

Manual hiding is never set here; it is only ever applied later by the edit
engine at user request. Hidden items stay on the statement so the exclusion
is auditable and reversible.
*/
package statement

// ClassifyExpenses partitions source expense/upsell records into statement
// line items. Every record becomes an item; classification only decides
// initial visibility.
func ClassifyExpenses(expenses []SourceExpense, billed BilledIndex) []LineItem {
	items := make([]LineItem, 0, len(expenses))
	for _, e := range expenses {
		item := LineItem{
			Type:        e.Type,
			SourceID:    e.ID,
			PropertyID:  e.PropertyID,
			Date:        e.Date,
			Description: e.Description,
			Category:    e.Category,
			Amount:      e.Amount,
			HiddenReason: HiddenNone,
		}

		if ref, ok := billed.Lookup(e.PropertyID, e.ID); ok {
			item.Hidden = true
			item.HiddenReason = HiddenPriorStatement
			item.PriorStatementID = ref.StatementID
			period := ref.Period
			item.PriorPeriod = &period
		} else if e.LLCover {
			item.Hidden = true
			item.HiddenReason = HiddenLLCover
		}

		items = append(items, item)
	}
	return items
}
