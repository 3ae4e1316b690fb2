package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

var fixedNow = time.Date(2026, 3, 14, 19, 45, 0, 0, time.UTC)

type mapDirectory struct {
	mu       sync.Mutex
	printers map[string]model.Printer
}

func newMapDirectory(printers ...model.Printer) *mapDirectory {
	d := &mapDirectory{printers: make(map[string]model.Printer)}
	for _, p := range printers {
		d.printers[p.ID] = p
	}
	return d
}

func (d *mapDirectory) ResolvePrinter(_ context.Context, id string) (model.PrinterTarget, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.printers[id]
	if !ok {
		return model.PrinterTarget{}, fmt.Errorf("%w: %s", model.ErrPrinterNotFound, id)
	}
	return p.Target()
}

func (d *mapDirectory) ResolveAccountPrinter(_ context.Context, businessID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.printers {
		if p.BusinessID == businessID && p.Role == model.RoleAccount {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", model.ErrNoAccountPrinter, businessID)
}

type sentDoc struct {
	PrinterID string
	Data      []byte
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentDoc
	fail map[string]error
}

func (s *fakeSender) Dispatch(_ context.Context, printerID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[printerID]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentDoc{PrinterID: printerID, Data: append([]byte(nil), data...)})
	return nil
}

func (s *fakeSender) Sent() []sentDoc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentDoc(nil), s.sent...)
}

type statusUpdate struct {
	JobID  string
	Status model.JobStatus
}

type fakeSink struct {
	mu      sync.Mutex
	updates []statusUpdate
}

func (s *fakeSink) SetJobStatus(_ context.Context, jobID string, status model.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, statusUpdate{JobID: jobID, Status: status})
	return nil
}

func (s *fakeSink) Updates() []statusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statusUpdate(nil), s.updates...)
}

func item(printer, table, name string, price float64, qty int) model.OrderLineEvent {
	return model.OrderLineEvent{
		ItemID:    fmt.Sprintf("%s-%s-%d", table, name, qty),
		Name:      name,
		UnitPrice: price,
		Quantity:  qty,
		PrinterID: printer,
		TableID:   table,
		Status:    model.StatusPending,
	}
}
