package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/client"
	"github.com/zhouzirui/eddez/backend/internal/config"
	"github.com/zhouzirui/eddez/backend/internal/handler"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/pubsub"
	"github.com/zhouzirui/eddez/backend/internal/service/upstream"
	"github.com/zhouzirui/eddez/backend/internal/storage"
)

const trackURL = "https://shop.example/track"

type scriptedUpstream struct {
	mu     sync.Mutex
	models []string
}

func (s *scriptedUpstream) Complete(_ context.Context, req upstream.Request) (*upstream.Response, error) {
	s.mu.Lock()
	s.models = append(s.models, req.Model)
	s.mu.Unlock()

	last := req.Messages[len(req.Messages)-1].Content
	content := "You can follow your parcel online. [ACTION_BUTTON:Track Order|" + trackURL + "]"
	switch {
	case strings.HasPrefix(last, "Generate a title"):
		content = `"Parcel Tracking"`
	case strings.Contains(last, "human"):
		content = "Let me connect you. [ACTION_SUPPORT_BUTTON]"
	}
	return &upstream.Response{Choices: []upstream.Choice{{Message: upstream.Message{Role: "assistant", Content: content}}}}, nil
}

func setupWidget(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore([]knowledge.Item{
		{ID: "1", Topic: "Tracking", Content: "Track orders online.", ButtonName: "Track Order", ButtonURL: trackURL},
	})
	hub := pubsub.NewHub(nil)
	srv := httptest.NewServer(handler.NewRouter(handler.Dependencies{
		Store:     store,
		Hub:       hub,
		Publisher: hub,
		Completer: &scriptedUpstream{},
	}))
	t.Cleanup(srv.Close)

	cfg = &config.Config{Widget: config.WidgetConfig{
		ServerURL:      srv.URL,
		PrimaryModel:   "primary",
		FallbackModel:  "fallback",
		Temperature:    0.1,
		MaxTokens:      1024,
		TopP:           0.8,
		RequestTimeout: 5 * time.Second,
		SupportURL:     "https://wa.me/000",
	}}
	logger = zap.NewNop()
	api = client.New(srv.URL, nil)
	return store
}

func TestREPLConversation(t *testing.T) {
	store := setupWidget(t)
	ctx := context.Background()

	cache := client.NewKnowledgeCache(api, logger)
	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("refresh err: %v", err)
	}
	ctrl := newController(cache)
	if err := ctrl.LoadUser(ctx, "ana@example.com"); err != nil {
		t.Fatalf("load user err: %v", err)
	}

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, out: &out, supportURL: cfg.Widget.SupportURL}
	input := strings.NewReader("where is my parcel?\ncan I talk to a human\n/sessions\n/settings tone=casual\n/quit\n")
	if err := r.run(ctx, input); err != nil {
		t.Fatalf("repl err: %v", err)
	}
	ctrl.Wait()

	text := out.String()
	for _, want := range []string{
		"assistant> You can follow your parcel online.",
		"[Track Order] " + trackURL,
		"[Contact Human Support] https://wa.me/000",
		"(4 messages)",
		"settings saved",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "ACTION_") {
		t.Fatalf("directive leaked into output:\n%s", text)
	}

	sessions, _ := store.ListSessions(ctx, "ana@example.com")
	if len(sessions) != 1 || sessions[0].Title != "Parcel Tracking" || len(sessions[0].Messages) != 4 {
		t.Fatalf("unexpected stored sessions: %+v", sessions)
	}
	prefs, _ := store.GetSettings(ctx, "ana@example.com")
	if prefs.Tone != "casual" {
		t.Fatalf("settings not persisted: %+v", prefs)
	}
}

func TestREPLRetryWithoutFailures(t *testing.T) {
	setupWidget(t)
	ctx := context.Background()

	ctrl := newController(client.NewKnowledgeCache(api, logger))
	if err := ctrl.LoadUser(ctx, "bob@example.com"); err != nil {
		t.Fatalf("load user err: %v", err)
	}

	var out bytes.Buffer
	r := &repl{ctrl: ctrl, out: &out}
	if err := r.run(ctx, strings.NewReader("/retry\n/open 3\n/bogus\n")); err != nil {
		t.Fatalf("repl err: %v", err)
	}

	text := out.String()
	for _, want := range []string{"nothing to retry", "no conversation #3", "unknown command /bogus"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}
