package push

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/eddez/backend/internal/pubsub"
)

func setupServer(t *testing.T) (*httptest.Server, *pubsub.Hub) {
	t.Helper()
	hub := pubsub.NewHub(nil)
	r := chi.NewRouter()
	New(hub, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func waitForSubscribers(t *testing.T, hub *pubsub.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", n, hub.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketReceivesKnowledgeUpdate(t *testing.T) {
	srv, hub := setupServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	waitForSubscribers(t, hub, 1)
	hub.Broadcast(pubsub.NewEvent(pubsub.EventKnowledgeUpdated))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt pubsub.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read err: %v", err)
	}
	if evt.Type != pubsub.EventKnowledgeUpdated {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	srv, hub := setupServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	waitForSubscribers(t, hub, 1)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSSEStreamsEvents(t *testing.T) {
	srv, hub := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request err: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	waitForSubscribers(t, hub, 1)
	hub.Broadcast(pubsub.NewEvent(pubsub.EventKnowledgeUpdated))

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: "+pubsub.EventKnowledgeUpdated {
			return
		}
	}
	t.Fatalf("event not received: %v", scanner.Err())
}
