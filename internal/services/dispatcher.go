package services

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

type ticketIDKey struct{}

// WithTicketID tags ctx so dispatch log lines carry the ticket or job id.
func WithTicketID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ticketIDKey{}, id)
}

func ticketID(ctx context.Context) string {
	id, _ := ctx.Value(ticketIDKey{}).(string)
	if id == "" {
		return "-"
	}
	return id
}

type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type DispatcherOptions struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// SettleDelay is slept between connect and write; some firmware accepts
	// before it is ready to read.
	SettleDelay time.Duration
	Dial        DialFunc
}

// Dispatcher sends encoded documents to printers over raw TCP. It never
// retries. Writes to one address are serialized, different addresses run in
// parallel.
type Dispatcher struct {
	directory PrinterDirectory
	opts      DispatcherOptions
	metrics   *metrics.Collector

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDispatcher(dir PrinterDirectory, opts DispatcherOptions, m *metrics.Collector) *Dispatcher {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = opts.DialTimeout
	}
	if opts.Dial == nil {
		d := &net.Dialer{Timeout: opts.DialTimeout}
		opts.Dial = d.DialContext
	}
	return &Dispatcher{
		directory: dir,
		opts:      opts,
		metrics:   m,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (d *Dispatcher) lockFor(addr string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[addr]
	if !ok {
		l = &sync.Mutex{}
		d.locks[addr] = l
	}
	return l
}

// Dispatch resolves printerID and writes data to it.
func (d *Dispatcher) Dispatch(ctx context.Context, printerID string, data []byte) error {
	target, err := d.directory.ResolvePrinter(ctx, printerID)
	if err != nil {
		d.metrics.RecordDispatch(err, 0)
		return fmt.Errorf("resolve printer %s: %w", printerID, err)
	}
	return d.DispatchTo(ctx, target, data)
}

func (d *Dispatcher) DispatchTo(ctx context.Context, target model.PrinterTarget, data []byte) error {
	addr := target.Address()
	lock := d.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := d.send(ctx, addr, data)
	d.metrics.RecordDispatch(err, time.Since(start))
	if err != nil {
		log.Printf("[%s] Ticket %s: print to %s failed: %v", target.Name, ticketID(ctx), addr, err)
		return err
	}
	log.Printf("[%s] Ticket %s: sent %d bytes to %s", target.Name, ticketID(ctx), len(data), addr)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, addr string, data []byte) error {
	dialCtx, cancel := context.WithTimeout(ctx, d.opts.DialTimeout)
	defer cancel()

	conn, err := d.opts.Dial(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	if d.opts.SettleDelay > 0 {
		select {
		case <-time.After(d.opts.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := conn.SetWriteDeadline(time.Now().Add(d.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}
