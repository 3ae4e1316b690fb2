package services

import (
	"bytes"
	"context"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// printerServer is a loopback raw-print listener collecting each connection's bytes.
type printerServer struct {
	ln   net.Listener
	mu   sync.Mutex
	jobs [][]byte
}

func startPrinterServer(t *testing.T) *printerServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &printerServer{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				data, _ := io.ReadAll(c)
				s.mu.Lock()
				s.jobs = append(s.jobs, data)
				s.mu.Unlock()
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *printerServer) printer(id string) model.Printer {
	addr := s.ln.Addr().(*net.TCPAddr)
	return model.Printer{ID: id, Name: id, IP: "127.0.0.1", Port: addr.Port, IsEnabled: true}
}

func (s *printerServer) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.jobs...)
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestDispatchWritesBytes(t *testing.T) {
	srv := startPrinterServer(t)
	d := NewDispatcher(newMapDirectory(srv.printer("kitchen")), DispatcherOptions{DialTimeout: time.Second}, nil)

	payload := []byte{0x1B, '@', 'h', 'i', '\n'}
	require.NoError(t, d.Dispatch(context.Background(), "kitchen", payload))

	require.Eventually(t, func() bool { return len(srv.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, payload, srv.received()[0])
}

func TestDispatchUnknownPrinter(t *testing.T) {
	d := NewDispatcher(newMapDirectory(), DispatcherOptions{}, nil)
	err := d.Dispatch(context.Background(), "ghost", []byte("x"))
	assert.ErrorIs(t, err, model.ErrPrinterNotFound)
}

func TestDispatchConnectionRefused(t *testing.T) {
	dir := newMapDirectory(model.Printer{ID: "bar", IP: "127.0.0.1", Port: closedPort(t), IsEnabled: true})
	d := NewDispatcher(dir, DispatcherOptions{DialTimeout: time.Second}, nil)
	assert.Error(t, d.Dispatch(context.Background(), "bar", []byte("x")))
}

func TestDispatchUnreachableDoesNotBlockOthers(t *testing.T) {
	srv := startPrinterServer(t)
	dir := newMapDirectory(
		srv.printer("kitchen"),
		model.Printer{ID: "dead", IP: "10.255.255.1", IsEnabled: true},
	)
	var dialer net.Dialer
	d := NewDispatcher(dir, DispatcherOptions{
		DialTimeout: 300 * time.Millisecond,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if addr == "10.255.255.1:9100" {
				<-ctx.Done() // a host that never answers
				return nil, ctx.Err()
			}
			return dialer.DialContext(ctx, network, addr)
		},
	}, nil)

	deadErr := make(chan error, 1)
	go func() { deadErr <- d.Dispatch(context.Background(), "dead", []byte("lost")) }()

	start := time.Now()
	require.NoError(t, d.Dispatch(context.Background(), "kitchen", []byte("ok")))
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	select {
	case err := <-deadErr:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch to unreachable printer did not time out")
	}
}

type countingConn struct {
	net.Conn
	onClose func()
	once    sync.Once
}

func (c *countingConn) Close() error {
	c.once.Do(c.onClose)
	return c.Conn.Close()
}

func TestDispatchSerializesPerPrinter(t *testing.T) {
	kitchen := startPrinterServer(t)
	bar := startPrinterServer(t)
	dir := newMapDirectory(kitchen.printer("kitchen"), bar.printer("bar"))

	var mu sync.Mutex
	active := map[string]int{}
	maxActive := map[string]int{}
	total, maxTotal := 0, 0
	var dialer net.Dialer

	d := NewDispatcher(dir, DispatcherOptions{
		DialTimeout: time.Second,
		SettleDelay: 40 * time.Millisecond,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			active[addr]++
			total++
			maxActive[addr] = max(maxActive[addr], active[addr])
			maxTotal = max(maxTotal, total)
			mu.Unlock()
			return &countingConn{Conn: conn, onClose: func() {
				mu.Lock()
				active[addr]--
				total--
				mu.Unlock()
			}}, nil
		},
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, id := range []string{"kitchen", "bar"} {
			wg.Add(1)
			go func(id string, i int) {
				defer wg.Done()
				assert.NoError(t, d.Dispatch(context.Background(), id, []byte(id+strconv.Itoa(i))))
			}(id, i)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for addr, n := range maxActive {
		assert.Equal(t, 1, n, "concurrent connections to %s", addr)
	}
	assert.Equal(t, 2, maxTotal, "different printers print in parallel")

	require.Eventually(t, func() bool {
		return len(kitchen.received()) == 4 && len(bar.received()) == 4
	}, time.Second, 5*time.Millisecond)
}

// captureLog redirects the standard logger for the rest of the test.
func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	log.SetOutput(buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDispatchLogsCarryTicketID(t *testing.T) {
	logs := captureLog(t)
	srv := startPrinterServer(t)
	dead := model.Printer{ID: "dead", Name: "dead", IP: "127.0.0.1", Port: closedPort(t), IsEnabled: true}
	d := NewDispatcher(newMapDirectory(srv.printer("kitchen"), dead), DispatcherOptions{DialTimeout: time.Second}, nil)

	require.NoError(t, d.Dispatch(WithTicketID(context.Background(), "ticket-ok"), "kitchen", []byte("x")))
	require.Error(t, d.Dispatch(WithTicketID(context.Background(), "ticket-bad"), "dead", []byte("x")))

	out := logs.String()
	assert.Regexp(t, `\[kitchen\] Ticket ticket-ok: sent 1 bytes`, out)
	assert.Regexp(t, `\[dead\] Ticket ticket-bad: print to .* failed`, out)
}
