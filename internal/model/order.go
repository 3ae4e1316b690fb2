package model

import (
	"math"
	"time"
)

// --- Order line events (change feed on order_items) ---

type ItemStatus string

const (
	StatusPending ItemStatus = "pending"
	StatusSent    ItemStatus = "sent"
	StatusPaid    ItemStatus = "paid"
	StatusGift    ItemStatus = "gift"
	StatusWaste   ItemStatus = "waste"
	StatusCancel  ItemStatus = "cancel"
)

// IsVoid reports whether the status takes the line out of the bill.
func (s ItemStatus) IsVoid() bool {
	return s == StatusCancel || s == StatusGift || s == StatusWaste
}

// Payable reports whether the line counts towards the remaining balance.
func (s ItemStatus) Payable() bool {
	return s == StatusPending || s == StatusSent || s == ""
}

type OrderLineEvent struct {
	ItemID         string     `json:"itemId"`
	Name           string     `json:"name"`
	UnitPrice      float64    `json:"unitPrice"`
	Quantity       int        `json:"quantity"`
	Note           string     `json:"note"`
	Modifiers      []string   `json:"modifiers"`
	PrinterID      string     `json:"printerId"`
	TableID        string     `json:"tableId"`
	StaffName      string     `json:"staffName"`
	Status         ItemStatus `json:"status"`
	PreviousStatus ItemStatus `json:"previousStatus,omitempty"`
	ReceivedAt     time.Time  `json:"-"`
}

// LineItemGroup is the merge of identical order lines with summed quantity.
type LineItemGroup struct {
	Name      string
	UnitPrice float64
	Note      string
	Modifiers []string
	Status    ItemStatus
	Quantity  int
	Sources   int
}

// Cents converts a decimal amount to integer minor units.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// SubtotalCents is unit price times quantity in minor units.
func (g LineItemGroup) SubtotalCents() int64 {
	return Cents(g.UnitPrice) * int64(g.Quantity)
}
