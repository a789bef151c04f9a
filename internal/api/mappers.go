package api

import "github.com/daman-app/daman/internal/database"

// GuaranteeToListItem converts a database Guarantee to a compact list
// representation without the raw spreadsheet fields.
func GuaranteeToListItem(g database.Guarantee) GuaranteeListItem {
	return GuaranteeListItem{
		ID:             g.ID,
		UUID:           g.UUID,
		ContractNumber: g.ContractNumber,
		SupplierText:   g.SupplierText,
		BankText:       g.BankText,
		Amount:         g.Amount,
		IssueDate:      g.IssueDate,
		ExpiryDate:     g.ExpiryDate,
		SupplierID:     g.SupplierID,
		BankID:         g.BankID,
		Status:         g.Status,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
}

// GuaranteesToListItems converts a slice of database Guarantees to list items.
func GuaranteesToListItems(gs []database.Guarantee) []GuaranteeListItem {
	items := make([]GuaranteeListItem, len(gs))
	for i, g := range gs {
		items[i] = GuaranteeToListItem(g)
	}
	return items
}

// EventToItem converts a database GuaranteeEvent to its API representation.
func EventToItem(e database.GuaranteeEvent) EventItem {
	return EventItem{
		ID:        e.ID,
		Type:      e.Type,
		Subtype:   e.Subtype,
		Snapshot:  e.Snapshot,
		Diff:      e.Diff,
		Actor:     e.Actor,
		CreatedAt: e.CreatedAt,
	}
}

// EventsToItems converts a slice of database GuaranteeEvents to API items.
func EventsToItems(events []database.GuaranteeEvent) []EventItem {
	items := make([]EventItem, len(events))
	for i, e := range events {
		items[i] = EventToItem(e)
	}
	return items
}
