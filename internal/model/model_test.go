package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterTarget(t *testing.T) {
	target, err := Printer{ID: "k1", IP: "192.168.1.50", Role: RoleKitchen}.Target()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50:9100", target.Address())
	assert.Equal(t, "k1", target.Name)
	assert.False(t, target.IsAccountPrinter)

	target, err = Printer{ID: "a1", IP: "192.168.1.51:9200", Port: 9100, Role: RoleAccount, BusinessID: "b1"}.Target()
	require.NoError(t, err)
	assert.Equal(t, 9200, target.Port, "port in the address wins")
	assert.True(t, target.IsAccountPrinter)
	assert.Equal(t, "b1", target.BusinessID)

	target, err = Printer{ID: "b1", IP: "bar.local", Port: 9101}.Target()
	require.NoError(t, err)
	assert.Equal(t, "bar.local:9101", target.Address())

	_, err = Printer{ID: "x"}.Target()
	assert.Error(t, err)
	_, err = Printer{ID: "x", IP: "10.0.0.1:abc"}.Target()
	assert.Error(t, err)
}

func TestItemStatus(t *testing.T) {
	for _, s := range []ItemStatus{StatusCancel, StatusGift, StatusWaste} {
		assert.True(t, s.IsVoid(), s)
		assert.False(t, s.Payable(), s)
	}
	for _, s := range []ItemStatus{StatusPending, StatusSent} {
		assert.False(t, s.IsVoid(), s)
		assert.True(t, s.Payable(), s)
	}
	assert.False(t, StatusPaid.Payable())
	assert.False(t, StatusPaid.IsVoid())
}

func TestLineItemGroupSubtotal(t *testing.T) {
	assert.Equal(t, int64(1735), Cents(17.35))
	g := LineItemGroup{UnitPrice: 0.1, Quantity: 3}
	assert.Equal(t, int64(30), g.SubtotalCents())
}

func TestDecodePayload(t *testing.T) {
	job := PrintJob{
		ID:   "j1",
		Type: JobAccountReceipt,
		Payload: json.RawMessage(`{
			"business": {"name": "Kose", "showLogo": true, "logoUrl": "https://x/logo.png"},
			"tableName": "T5",
			"items": [{"name": "Burger", "unitPrice": 250, "quantity": 1, "status": "sent"}]
		}`),
	}
	p, err := job.DecodePayload()
	require.NoError(t, err)
	receipt, ok := p.(AccountReceiptPayload)
	require.True(t, ok)
	assert.Equal(t, "Kose", receipt.Business.Name)
	assert.Equal(t, StatusSent, receipt.Items[0].Status)

	drawer, err := PrintJob{Type: JobOpenDrawer}.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, OpenDrawerPayload{}, drawer)
}

func TestDecodePayloadInvalid(t *testing.T) {
	cases := map[string]PrintJob{
		"unknown type":  {Type: "reprint"},
		"no items":      {Type: JobAccountReceipt, Payload: json.RawMessage(`{"items":[]}`)},
		"zero quantity": {Type: JobAccountReceipt, Payload: json.RawMessage(`{"items":[{"name":"Tea","quantity":0}]}`)},
		"bad json":      {Type: JobAccountReceipt, Payload: json.RawMessage(`{"items":`)},
		"bad pin":       {Type: JobOpenDrawer, Payload: json.RawMessage(`{"pin":3}`)},
	}
	for name, job := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := job.DecodePayload()
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}
