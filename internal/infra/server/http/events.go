package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/leadfisco/fiscaldesk/internal/observability"
)

const (
	// subscriberBuffer bounds the per-connection event queue. A subscriber
	// that falls this far behind is dropped rather than stalling publishers.
	subscriberBuffer = 64

	eventWriteTimeout = 5 * time.Second
)

// EventsHub fans audit events out to websocket subscribers. It implements
// observability.AuditSink so it can be installed with SetAuditSink.
type EventsHub struct {
	mu          sync.Mutex
	subscribers map[chan observability.AuditEvent]struct{}
	closed      bool
}

// NewEventsHub builds an empty hub.
func NewEventsHub() *EventsHub {
	return &EventsHub{subscribers: make(map[chan observability.AuditEvent]struct{})}
}

// Publish delivers the event to every live subscriber. Slow subscribers are
// skipped; the feed is best-effort by design of the audit trail, which is
// fully logged regardless.
func (h *EventsHub) Publish(event observability.AuditEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close disconnects all subscribers and rejects new ones.
func (h *EventsHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = make(map[chan observability.AuditEvent]struct{})
}

func (h *EventsHub) subscribe() (chan observability.AuditEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan observability.AuditEvent, subscriberBuffer)
	h.subscribers[ch] = struct{}{}
	return ch, true
}

func (h *EventsHub) unsubscribe(ch chan observability.AuditEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

func (h *EventsHub) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		observability.Log().Warn("events subscribe failed",
			observability.F("error", err.Error()))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, ok := h.subscribe()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(ctx, conn, event); err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event observability.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
