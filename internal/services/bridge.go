package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// Sender delivers an encoded document to a printer id.
type Sender interface {
	Dispatch(ctx context.Context, printerID string, data []byte) error
}

// StatusSink records the final outcome of an explicit print job.
type StatusSink interface {
	SetJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
}

// Streams are the three independent inputs of the bridge.
type Streams struct {
	Items       <-chan model.OrderLineEvent
	Transitions <-chan model.OrderLineEvent
	Jobs        <-chan model.PrintJob
}

type BridgeOptions struct {
	Window       time.Duration
	DrainTimeout time.Duration
	Now          func() time.Time
}

// Bridge wires the event streams through aggregation, rendering and dispatch.
// Grouped tickets are fire-and-forget; explicit jobs report their status once.
type Bridge struct {
	directory PrinterDirectory
	sender    Sender
	builder   *escpos.Builder
	logos     *LogoLoader
	sink      StatusSink
	metrics   *metrics.Collector
	opts      BridgeOptions

	kitchen *Aggregator
	cancels *Aggregator

	kitchenSeq atomic.Int64
	cancelSeq  atomic.Int64
	jobs       sync.WaitGroup
}

func NewBridge(dir PrinterDirectory, sender Sender, builder *escpos.Builder, logos *LogoLoader, sink StatusSink, m *metrics.Collector, opts BridgeOptions) *Bridge {
	if opts.Window <= 0 {
		opts.Window = 1500 * time.Millisecond
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := &Bridge{
		directory: dir,
		sender:    sender,
		builder:   builder,
		logos:     logos,
		sink:      sink,
		metrics:   m,
		opts:      opts,
	}
	b.kitchen = NewAggregator("kitchen", opts.Window, IsNewItem, b.flushKitchen, m)
	b.cancels = NewAggregator("cancel", opts.Window, IsCancellationTransition, b.flushCancellation, m)
	return b
}

// IsNewItem accepts inserted lines that are still live.
func IsNewItem(ev model.OrderLineEvent) bool {
	return !ev.Status.IsVoid()
}

// IsCancellationTransition accepts a change from a live status into
// cancel, gift or waste. Moves between two void states are not reprinted.
func IsCancellationTransition(ev model.OrderLineEvent) bool {
	return ev.Status.IsVoid() && ev.PreviousStatus != ev.Status && !ev.PreviousStatus.IsVoid()
}

// Run consumes the three streams until ctx is cancelled or all of them are
// closed, then flushes pending tickets and waits for running jobs.
func (b *Bridge) Run(ctx context.Context, s Streams) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.consume(gctx, s.Items, b.kitchen) })
	g.Go(func() error { return b.consume(gctx, s.Transitions, b.cancels) })
	g.Go(func() error { return b.consumeJobs(gctx, s.Jobs) })
	err := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.opts.DrainTimeout)
	defer cancel()
	if derr := b.Drain(drainCtx); derr != nil {
		log.Printf("[bridge] Drain incomplete: %v", derr)
	}
	return err
}

// Drain flushes buffered tickets immediately and waits for in-flight work.
func (b *Bridge) Drain(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return b.kitchen.Drain(ctx) })
	g.Go(func() error { return b.cancels.Drain(ctx) })
	g.Go(func() error {
		done := make(chan struct{})
		go func() {
			b.jobs.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return g.Wait()
}

func (b *Bridge) consume(ctx context.Context, events <-chan model.OrderLineEvent, agg *Aggregator) error {
	if events == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			agg.Add(ev)
		}
	}
}

func (b *Bridge) consumeJobs(ctx context.Context, jobs <-chan model.PrintJob) error {
	if jobs == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-jobs:
			if !ok {
				return nil
			}
			b.jobs.Add(1)
			go func(job model.PrintJob) {
				defer b.jobs.Done()
				b.HandleJob(context.WithoutCancel(ctx), job)
			}(job)
		}
	}
}

// --- Grouped tickets ---

func (b *Bridge) ticketHeader(batch TicketBatch, seq *atomic.Int64) escpos.TicketHeader {
	table := batch.Key.Scope
	if table == CounterScope {
		table = ""
	}
	return escpos.TicketHeader{
		Staff:  batch.StaffName,
		Table:  table,
		Time:   b.opts.Now(),
		Number: seq.Add(1),
	}
}

func (b *Bridge) flushKitchen(batch TicketBatch) {
	groups := MergeLines(batch.Events, false)
	doc := b.builder.KitchenTicket(b.ticketHeader(batch, &b.kitchenSeq), groups)
	b.printTicket("kitchen", batch, doc)
}

func (b *Bridge) flushCancellation(batch TicketBatch) {
	groups := MergeLines(batch.Events, true)
	doc := b.builder.CancellationTicket(b.ticketHeader(batch, &b.cancelSeq), groups)
	b.printTicket("cancel", batch, doc)
}

func (b *Bridge) printTicket(stream string, batch TicketBatch, doc escpos.Document) {
	id := uuid.NewString()
	b.metrics.RecordFlush(string(doc.Kind))
	log.Printf("[%s] Ticket %s: %d events for printer %s / %s", stream, id, len(batch.Events), batch.Key.PrinterID, batch.Key.Scope)

	ctx := WithTicketID(context.Background(), id)
	err := b.sender.Dispatch(ctx, batch.Key.PrinterID, b.builder.Encode(doc))
	switch {
	case errors.Is(err, model.ErrPrinterNotFound):
		// unresolvable destinations are only known once the directory is asked
		log.Printf("[%s] Dropping ticket %s: %v", stream, id, err)
		b.metrics.RecordDrop("unknown_printer")
	case err != nil:
		log.Printf("[%s] Ticket %s not printed: %v", stream, id, err)
	}
}

// --- Explicit jobs ---

// HandleJob renders and prints one job and reports its outcome exactly once.
func (b *Bridge) HandleJob(ctx context.Context, job model.PrintJob) model.JobStatus {
	ctx = WithTicketID(ctx, job.ID)
	status := model.JobCompleted
	if err := b.processJob(ctx, job); err != nil {
		log.Printf("[jobs] Job %s (%s) failed: %v", job.ID, job.Type, err)
		status = model.JobFailed
	} else {
		log.Printf("[jobs] Job %s (%s) completed", job.ID, job.Type)
	}
	b.metrics.RecordJob(string(job.Type), string(status))

	if b.sink != nil {
		if err := b.sink.SetJobStatus(ctx, job.ID, status); err != nil {
			log.Printf("[jobs] Failed to record status %s for job %s: %v", status, job.ID, err)
		}
	}
	return status
}

func (b *Bridge) processJob(ctx context.Context, job model.PrintJob) error {
	payload, err := job.DecodePayload()
	if err != nil {
		return err
	}

	printerID := job.PrinterID
	if printerID == "" {
		if job.BusinessID == "" {
			return fmt.Errorf("%w: job has neither printer nor business", model.ErrInvalidPayload)
		}
		printerID, err = b.directory.ResolveAccountPrinter(ctx, job.BusinessID)
		if err != nil {
			return err
		}
	}

	var doc escpos.Document
	switch p := payload.(type) {
	case model.AccountReceiptPayload:
		doc = b.accountReceipt(ctx, p)
	case model.OpenDrawerPayload:
		doc = b.builder.DrawerKick(p.Pin)
	default:
		return fmt.Errorf("%w: unhandled job type %q", model.ErrInvalidPayload, job.Type)
	}
	return b.sender.Dispatch(ctx, printerID, b.builder.Encode(doc))
}

func (b *Bridge) accountReceipt(ctx context.Context, p model.AccountReceiptPayload) escpos.Document {
	var logo *escpos.Raster
	if p.Business.ShowLogo && p.Business.LogoURL != "" && b.logos != nil {
		r, err := b.logos.Load(ctx, p.Business.LogoURL)
		if err != nil {
			log.Printf("[jobs] Logo unavailable, printing business name instead: %v", err)
			b.metrics.RecordLogoFallback()
		} else {
			logo = r
		}
	}
	return b.builder.AccountReceipt(escpos.Receipt{
		Business: p.Business,
		Staff:    p.StaffName,
		Table:    p.TableName,
		Time:     b.opts.Now(),
		Groups:   ReceiptGroups(p.Items),
	}, logo)
}
