package services

import (
	"slices"
	"strings"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

type mergeKey struct {
	name      string
	cents     int64
	note      string
	modifiers string
	status    model.ItemStatus
}

// MergeLines folds events with the same name, price, note and modifier set
// (and status, when byStatus is set) into one group with the summed quantity.
// Groups keep the order in which their first event arrived.
func MergeLines(events []model.OrderLineEvent, byStatus bool) []model.LineItemGroup {
	index := make(map[mergeKey]int)
	var groups []model.LineItemGroup
	for _, ev := range events {
		mods := slices.Clone(ev.Modifiers)
		slices.Sort(mods)
		key := mergeKey{
			name:      ev.Name,
			cents:     model.Cents(ev.UnitPrice),
			note:      strings.TrimSpace(ev.Note),
			modifiers: strings.Join(mods, "\x00"),
		}
		if byStatus {
			key.status = ev.Status
		}
		qty := ev.Quantity
		if qty <= 0 {
			qty = 1
		}
		if i, ok := index[key]; ok {
			groups[i].Quantity += qty
			groups[i].Sources++
			continue
		}
		index[key] = len(groups)
		groups = append(groups, model.LineItemGroup{
			Name:      ev.Name,
			UnitPrice: ev.UnitPrice,
			Note:      key.note,
			Modifiers: ev.Modifiers,
			Status:    ev.Status,
			Quantity:  qty,
			Sources:   1,
		})
	}
	return groups
}

// ReceiptGroups merges account receipt items, keeping paid and unpaid lines apart.
func ReceiptGroups(items []model.ReceiptItem) []model.LineItemGroup {
	return MergeLines(receiptEvents(items), true)
}

func receiptEvents(items []model.ReceiptItem) []model.OrderLineEvent {
	events := make([]model.OrderLineEvent, 0, len(items))
	for _, it := range items {
		events = append(events, model.OrderLineEvent{
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Note:      it.Note,
			Modifiers: it.Modifiers,
			Status:    it.Status,
		})
	}
	return events
}
