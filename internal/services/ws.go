package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

var ErrFeedDisconnected = errors.New("feed not connected")

// maxPendingAcks bounds the job_status messages held while disconnected.
const maxPendingAcks = 256

type FeedOptions struct {
	URL            string
	APIKey         string
	ReconnectDelay time.Duration
}

// FeedOutputs are the channels the feed routes events into.
type FeedOutputs struct {
	Items       chan<- model.OrderLineEvent
	Transitions chan<- model.OrderLineEvent
	Jobs        chan<- model.PrintJob
}

// --- WebSocket change feed ---

// Feed is the websocket client for order_items changes and print jobs. It
// reconnects forever and doubles as the job status sink: acks produced while
// disconnected are held and sent after the next subscribe.
type Feed struct {
	opts FeedOptions
	out  FeedOutputs

	mu      sync.Mutex
	conn    *websocket.Conn
	pending []model.WSMessage
}

func NewFeed(opts FeedOptions, out FeedOutputs) *Feed {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	return &Feed{opts: opts, out: out}
}

func (f *Feed) Run(ctx context.Context) error {
	header := http.Header{}
	header.Add("X-Api-Key", f.opts.APIKey)

	log.Printf("[feed] Connecting to %s...", f.opts.URL)
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.opts.URL, header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[feed] Connection failed: %v. Retrying in %s...", err, f.opts.ReconnectDelay)
		} else {
			log.Printf("[feed] Connected.")
			f.handleConnection(ctx, conn)
			log.Printf("[feed] Disconnected.")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.opts.ReconnectDelay):
		}
	}
}

func (f *Feed) handleConnection(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer func() {
		close(stop)
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
		conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	// subscribe goes out before the session is published, so held acks
	// and new writes always follow it
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(model.WSMessage{Type: model.MessageTypeSubscribe, APIKey: f.opts.APIKey}); err != nil {
		log.Printf("[feed] Failed to send subscribe: %v", err)
		return
	}
	f.mu.Lock()
	f.conn = conn
	if n := f.flushLocked(); n > 0 {
		log.Printf("[feed] Delivered %d held job status message(s)", n)
	}
	f.mu.Unlock()

	for {
		var msg model.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				log.Printf("[feed] Read error: %v", err)
			}
			return
		}
		if err := f.route(ctx, msg); err != nil {
			log.Printf("[feed] Dropping %s message: %v", msg.Type, err)
		}
	}
}

func (f *Feed) write(msg model.WSMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeLocked(msg)
}

func (f *Feed) writeLocked(msg model.WSMessage) error {
	if f.conn == nil {
		return ErrFeedDisconnected
	}
	f.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return f.conn.WriteJSON(msg)
}

// Connected reports whether a websocket session is currently open.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn != nil
}

// flushLocked sends held job_status messages in order, keeping whatever
// could not be written for the next session. f.mu must be held.
func (f *Feed) flushLocked() int {
	sent := 0
	for _, msg := range f.pending {
		if err := f.writeLocked(msg); err != nil {
			if !errors.Is(err, ErrFeedDisconnected) {
				log.Printf("[feed] Status for job %s not sent, holding it: %v", msg.JobID, err)
			}
			break
		}
		sent++
	}
	f.pending = f.pending[sent:]
	return sent
}

// route classifies one message onto the items, transitions or jobs channel.
func (f *Feed) route(ctx context.Context, msg model.WSMessage) error {
	switch msg.Type {
	case model.MessageTypeSubscribed:
		log.Printf("[feed] Subscription confirmed.")
		return nil

	case model.MessageTypePing:
		return f.write(model.WSMessage{Type: model.MessageTypePong})

	case model.MessageTypeInsert, model.MessageTypeUpdate:
		if msg.Table != model.TableOrderItems {
			return nil
		}
		ev, err := decodeLineEvent(msg)
		if err != nil {
			return err
		}
		ch := f.out.Items
		if msg.Type == model.MessageTypeUpdate {
			ch = f.out.Transitions
		}
		return send(ctx, ch, ev)

	case model.MessageTypePrintJob:
		if msg.Job == nil || msg.Job.ID == "" {
			return fmt.Errorf("print job without id")
		}
		if msg.Job.Status != "" && msg.Job.Status != model.JobPending {
			return nil
		}
		return send(ctx, f.out.Jobs, *msg.Job)

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func decodeLineEvent(msg model.WSMessage) (model.OrderLineEvent, error) {
	var ev model.OrderLineEvent
	if len(msg.Record) == 0 {
		return ev, fmt.Errorf("missing record")
	}
	if err := json.Unmarshal(msg.Record, &ev); err != nil {
		return ev, fmt.Errorf("malformed record: %w", err)
	}
	if len(msg.OldRecord) > 0 {
		var old struct {
			Status model.ItemStatus `json:"status"`
		}
		if err := json.Unmarshal(msg.OldRecord, &old); err != nil {
			return ev, fmt.Errorf("malformed old record: %w", err)
		}
		ev.PreviousStatus = old.Status
	}
	ev.ReceivedAt = time.Now()
	return ev, nil
}

func send[T any](ctx context.Context, ch chan<- T, v T) error {
	if ch == nil {
		return nil
	}
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetJobStatus acknowledges a job back over the feed. When the feed is down
// the ack is held until the next session; only a full buffer loses it.
func (f *Feed) SetJobStatus(_ context.Context, jobID string, status model.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) >= maxPendingAcks {
		return fmt.Errorf("%w: %d acks already held, dropping status for job %s", ErrFeedDisconnected, len(f.pending), jobID)
	}
	f.pending = append(f.pending, model.WSMessage{Type: model.MessageTypeJobStatus, JobID: jobID, Status: status})
	f.flushLocked()
	return nil
}

// PendingAcks returns the number of job_status messages awaiting a session.
func (f *Feed) PendingAcks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
