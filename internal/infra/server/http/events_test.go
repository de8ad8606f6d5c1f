package httpserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/leadfisco/fiscaldesk/internal/observability"
)

func TestEventsHubFanOut(t *testing.T) {
	hub := NewEventsHub()
	defer hub.Close()

	srv := httptest.NewServer(NewHandler(&stubRefresher{}, &stubLoader{}, hub))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Subscription registers asynchronously with the accept handler.
	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.subscribers)
		hub.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(observability.AuditEvent{
		Name:      observability.EventSnapshotOK,
		ClienteID: "CLT-0001",
		Hash:      "abc123",
	})

	msgType, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.MessageText {
		t.Fatalf("message type = %v", msgType)
	}

	var event observability.AuditEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Name != observability.EventSnapshotOK || event.ClienteID != "CLT-0001" {
		t.Fatalf("event = %+v", event)
	}
}

func TestEventsHubDropsSlowSubscriber(t *testing.T) {
	hub := NewEventsHub()
	defer hub.Close()

	ch, ok := hub.subscribe()
	if !ok {
		t.Fatal("subscribe refused")
	}
	defer hub.unsubscribe(ch)

	// Fill the buffer and then some; publishes past capacity must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(observability.AuditEvent{Name: observability.EventPersistStart})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered = %d", len(ch))
	}
}

func TestEventsHubCloseRejectsSubscribers(t *testing.T) {
	hub := NewEventsHub()
	hub.Close()
	if _, ok := hub.subscribe(); ok {
		t.Fatal("subscribe after close should be refused")
	}
	// Idempotent.
	hub.Close()
}
