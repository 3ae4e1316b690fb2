package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// CounterScope groups events that carry no table.
const CounterScope = "_counter"

type TicketKey struct {
	PrinterID string
	Scope     string
}

// TicketBatch is what a flushed group hands to the renderer: every event of
// the window in arrival order plus the last staff name seen.
type TicketBatch struct {
	Key       TicketKey
	Events    []model.OrderLineEvent
	StaffName string
	OpenedAt  time.Time
}

type FlushFunc func(TicketBatch)

type ticketGroup struct {
	events   []model.OrderLineEvent
	staff    string
	openedAt time.Time
	timer    *time.Timer
	gen      uint64
}

// Aggregator debounces events per (printer, table). Every arrival restarts the
// group's timer; when it fires the group is removed and flushed. Append and
// flush-and-remove hold the same lock, so an event either joins the batch
// being flushed or opens a new group.
type Aggregator struct {
	name    string
	window  time.Duration
	accept  func(model.OrderLineEvent) bool
	flush   FlushFunc
	metrics *metrics.Collector

	mu     sync.Mutex
	groups map[TicketKey]*ticketGroup
	gen    uint64

	inflight sync.WaitGroup
}

func NewAggregator(name string, window time.Duration, accept func(model.OrderLineEvent) bool, flush FlushFunc, m *metrics.Collector) *Aggregator {
	if accept == nil {
		accept = func(model.OrderLineEvent) bool { return true }
	}
	return &Aggregator{
		name:    name,
		window:  window,
		accept:  accept,
		flush:   flush,
		metrics: m,
		groups:  make(map[TicketKey]*ticketGroup),
	}
}

// Add buffers ev and reports whether it was accepted. It never blocks on I/O.
func (a *Aggregator) Add(ev model.OrderLineEvent) bool {
	if ev.PrinterID == "" {
		log.Printf("[%s] Dropping item %q (%s): no destination printer", a.name, ev.Name, ev.ItemID)
		a.metrics.RecordDrop("no_printer")
		return false
	}
	if !a.accept(ev) {
		return false
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	key := TicketKey{PrinterID: ev.PrinterID, Scope: ev.TableID}
	if key.Scope == "" {
		key.Scope = CounterScope
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.gen++
	g, ok := a.groups[key]
	if !ok {
		g = &ticketGroup{openedAt: ev.ReceivedAt}
		a.groups[key] = g
	} else {
		g.timer.Stop()
	}
	g.events = append(g.events, ev)
	if ev.StaffName != "" {
		g.staff = ev.StaffName
	}
	g.gen = a.gen
	gen := a.gen
	g.timer = time.AfterFunc(a.window, func() { a.expire(key, gen) })

	a.metrics.RecordEvent(a.name)
	return true
}

// expire runs on the timer goroutine. A stale generation means the timer was
// superseded by a later arrival whose own timer will flush the group.
func (a *Aggregator) expire(key TicketKey, gen uint64) {
	a.mu.Lock()
	g, ok := a.groups[key]
	if !ok || g.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	a.inflight.Add(1)
	a.mu.Unlock()

	defer a.inflight.Done()
	a.flush(TicketBatch{Key: key, Events: g.events, StaffName: g.staff, OpenedAt: g.openedAt})
}

// Pending returns the number of groups still buffering.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Drain flushes every buffering group now and waits for all flushes, including
// ones already running, until ctx is done.
func (a *Aggregator) Drain(ctx context.Context) error {
	a.mu.Lock()
	batches := make([]TicketBatch, 0, len(a.groups))
	for key, g := range a.groups {
		g.timer.Stop()
		batches = append(batches, TicketBatch{Key: key, Events: g.events, StaffName: g.staff, OpenedAt: g.openedAt})
		delete(a.groups, key)
	}
	a.inflight.Add(len(batches))
	a.mu.Unlock()

	for _, b := range batches {
		go func(b TicketBatch) {
			defer a.inflight.Done()
			a.flush(b)
		}(b)
	}

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
