package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/pubsub"
	"github.com/zhouzirui/eddez/backend/internal/storage"
)

func newTestRouter() (http.Handler, *pubsub.Hub) {
	hub := pubsub.NewHub(nil)
	return NewRouter(Dependencies{
		Store:     storage.NewMemoryStore(knowledge.Seed()),
		Hub:       hub,
		Publisher: hub,
	}), hub
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body["status"] != "ok" || body["timestamp"] == nil {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body["success"] != false || body["error"] == "" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCompletionWithoutCredential(t *testing.T) {
	r, _ := newTestRouter()

	payload := []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat-completion", bytes.NewReader(payload))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"code":"configuration"`)) {
		t.Fatalf("expected configuration code, got %s", resp.Body.String())
	}
}

func TestKnowledgeUpdateReachesSubscribers(t *testing.T) {
	r, hub := newTestRouter()
	events, cancel := hub.Subscribe(1)
	defer cancel()

	payload := []byte(`[{"topic":"Returns","content":"30 days."}]`)
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base", bytes.NewReader(payload))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	select {
	case evt := <-events:
		if evt.Type != pubsub.EventKnowledgeUpdated {
			t.Fatalf("unexpected event %+v", evt)
		}
	default:
		t.Fatal("expected broadcast")
	}
}
