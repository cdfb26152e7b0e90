package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
	"github.com/zhouzirui/eddez/backend/internal/service/gateway"
)

// fakeGateway answers title prompts and chat prompts separately.
type fakeGateway struct {
	mu         sync.Mutex
	chatCalls  int
	titleCalls int
	chat       func(call int) (string, error)
	title      func() (string, error)
	block      chan struct{}
}

func (f *fakeGateway) Complete(_ context.Context, msgs []*schema.Message) (string, error) {
	isTitle := len(msgs) == 1 && strings.HasPrefix(msgs[0].Content, "Generate a title")

	f.mu.Lock()
	if isTitle {
		f.titleCalls++
		f.mu.Unlock()
		if f.title == nil {
			return "", gateway.ErrUpstream
		}
		return f.title()
	}
	f.chatCalls++
	call := f.chatCalls
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	return f.chat(call)
}

func (f *fakeGateway) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls, f.titleCalls
}

type memorySessions struct {
	mu    sync.Mutex
	saved map[string]chat.Session
	saves int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{saved: make(map[string]chat.Session)}
}

func (m *memorySessions) ListSessions(context.Context, string) ([]chat.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chat.Session, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, s)
	}
	return out, nil
}

func (m *memorySessions) SaveSession(_ context.Context, _ string, s chat.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.saved[s.ID] = s
	return nil
}

func (m *memorySessions) DeleteSession(_ context.Context, _ string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	return nil
}

func (m *memorySessions) get(id string) (chat.Session, bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saved[id]
	return s, ok, m.saves
}

type staticSettings struct{ prefs settings.UserSettings }

func (s staticSettings) GetSettings(context.Context, string) (settings.UserSettings, error) {
	return s.prefs, nil
}

func (s staticSettings) SaveSettings(context.Context, string, settings.UserSettings) error {
	return nil
}

type offline struct{}

func (offline) Online(context.Context) bool { return false }

func reply(text string) func(int) (string, error) {
	return func(int) (string, error) { return text, nil }
}

func newTestController(gw *fakeGateway, store *memorySessions, kb []knowledge.Item) *Controller {
	state := &State{User: "ayesha@example.com"}
	return NewController(state, Config{
		Gateway:   gw,
		Knowledge: knowledge.NewMemoryStore(kb),
		Sessions:  store,
	})
}

func TestSendFirstTurnCreatesTitledSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{
		chat:  reply("Shipping takes 3-5 days."),
		title: func() (string, error) { return `"Shipping Time Question"`, nil },
	}
	store := newMemorySessions()
	ctrl := newTestController(gw, store, knowledge.Seed())

	turn, err := ctrl.Send(context.Background(), "How long is shipping?")
	require.NoError(t, err)
	ctrl.Wait()

	state := ctrl.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, chat.StatusSent, state.Messages[0].Status)
	assert.Equal(t, chat.RoleAssistant, state.Messages[1].Role)
	assert.Equal(t, turn.SessionID, state.CurrentSessionID)
	require.Len(t, state.Sessions, 1)
	assert.Equal(t, "Shipping Time Question", state.Sessions[0].Title)

	saved, ok, _ := store.get(turn.SessionID)
	require.True(t, ok)
	assert.Equal(t, "Shipping Time Question", saved.Title)
	assert.Len(t, saved.Messages, 2)
}

func TestSendTitleFailureUsesPlaceholder(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{chat: reply("Hi!")}
	store := newMemorySessions()
	ctrl := newTestController(gw, store, nil)

	turn, err := ctrl.Send(context.Background(), "hello")
	require.NoError(t, err)
	ctrl.Wait()

	saved, ok, _ := store.get(turn.SessionID)
	require.True(t, ok)
	assert.Equal(t, chat.DefaultTitle, saved.Title)
}

func TestSecondTurnReusesSessionWithoutRetitling(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{
		chat:  reply("ok"),
		title: func() (string, error) { return "Order Help", nil },
	}
	store := newMemorySessions()
	ctrl := newTestController(gw, store, nil)

	first, err := ctrl.Send(context.Background(), "one")
	require.NoError(t, err)
	second, err := ctrl.Send(context.Background(), "two")
	require.NoError(t, err)
	ctrl.Wait()

	assert.Equal(t, first.SessionID, second.SessionID)
	_, titleCalls := gw.counts()
	assert.Equal(t, 1, titleCalls)

	saved, _, saves := store.get(first.SessionID)
	assert.Equal(t, 2, saves)
	assert.Len(t, saved.Messages, 4)
	assert.Equal(t, "Order Help", saved.Title)
}

func TestOfflineShortCircuitsGateway(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{chat: reply("never")}
	store := newMemorySessions()
	ctrl := NewController(&State{User: "u"}, Config{
		Gateway:      gw,
		Sessions:     store,
		Connectivity: offline{},
	})

	_, err := ctrl.Send(context.Background(), "hello")
	require.ErrorIs(t, err, ErrOffline)
	ctrl.Wait()

	chatCalls, _ := gw.counts()
	assert.Zero(t, chatCalls)

	state := ctrl.Snapshot()
	require.Len(t, state.Messages, 1)
	assert.Equal(t, chat.StatusError, state.Messages[0].Status)
	assert.Empty(t, state.Sessions)
	assert.Empty(t, state.CurrentSessionID)
	assert.False(t, state.Thinking)
}

func TestRetryIsIdempotentOnMessageID(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{
		chat: func(call int) (string, error) {
			if call == 1 {
				return "", fmt.Errorf("%w: status 503", gateway.ErrUpstream)
			}
			return "Here you go.", nil
		},
	}
	store := newMemorySessions()
	ctrl := newTestController(gw, store, nil)

	failed, err := ctrl.Send(context.Background(), "where is my parcel?")
	require.ErrorIs(t, err, gateway.ErrUpstream)

	state := ctrl.Snapshot()
	require.Len(t, state.Messages, 1)
	assert.Equal(t, chat.StatusError, state.Messages[0].Status)
	assert.Empty(t, state.Sessions, "failed first turn must not create a session")

	_, err = ctrl.Retry(context.Background(), failed.MessageID)
	require.NoError(t, err)
	ctrl.Wait()

	state = ctrl.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, failed.MessageID, state.Messages[0].ID)
	assert.Equal(t, "where is my parcel?", state.Messages[0].Content)
	assert.Equal(t, chat.StatusSent, state.Messages[0].Status)
	assert.Equal(t, chat.RoleAssistant, state.Messages[1].Role)
}

func TestRetryRejectsSentMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{chat: reply("ok")}
	ctrl := newTestController(gw, newMemorySessions(), nil)

	turn, err := ctrl.Send(context.Background(), "hi")
	require.NoError(t, err)
	ctrl.Wait()

	_, err = ctrl.Retry(context.Background(), turn.MessageID)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = ctrl.Retry(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestConfigurationErrorMarksMessageFailed(t *testing.T) {
	gw := &fakeGateway{chat: func(int) (string, error) {
		return "", fmt.Errorf("%w: missing key", gateway.ErrConfiguration)
	}}
	ctrl := newTestController(gw, newMemorySessions(), nil)

	_, err := ctrl.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, gateway.ErrConfiguration)
	assert.Equal(t, chat.StatusError, ctrl.Snapshot().Messages[0].Status)
}

func TestEscalationRequestAlwaysShowsSupport(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{chat: reply("Shipping is free over $50.")}
	ctrl := newTestController(gw, newMemorySessions(), knowledge.Seed())

	turn, err := ctrl.Send(context.Background(), "I want to talk to a human")
	require.NoError(t, err)
	ctrl.Wait()

	require.NotNil(t, turn.Reply)
	assert.True(t, turn.Reply.WantsHumanSupport)
}

func TestCoveredQuestionMentioningWhatsAppStaysGrounded(t *testing.T) {
	defer goleak.VerifyNone(t)

	kb := []knowledge.Item{{ID: "w", Topic: "Ordering via WhatsApp", Content: "Send your cart link to our WhatsApp order line."}}
	gw := &fakeGateway{chat: reply("Yes, send your cart link to our WhatsApp order line.")}
	ctrl := newTestController(gw, newMemorySessions(), kb)

	turn, err := ctrl.Send(context.Background(), "Can I place an order through WhatsApp?")
	require.NoError(t, err)
	ctrl.Wait()

	require.NotNil(t, turn.Reply)
	assert.False(t, turn.Reply.WantsHumanSupport)
}

func TestReplyButtonsAreWhitelisted(t *testing.T) {
	defer goleak.VerifyNone(t)

	kb := []knowledge.Item{{ID: "t", Topic: "Tracking", Content: "Track online.", ButtonName: "Track", ButtonURL: "https://shop.example/track"}}
	gw := &fakeGateway{chat: func(call int) (string, error) {
		if call == 1 {
			return "Track here [ACTION_BUTTON:Track|https://shop.example/track]", nil
		}
		return "Or here [ACTION_BUTTON:Track|https://phish.example]", nil
	}}
	ctrl := newTestController(gw, newMemorySessions(), kb)

	first, err := ctrl.Send(context.Background(), "track my order")
	require.NoError(t, err)
	second, err := ctrl.Send(context.Background(), "another link?")
	require.NoError(t, err)
	ctrl.Wait()

	require.NotNil(t, first.Reply.Button)
	assert.Equal(t, "https://shop.example/track", first.Reply.Button.URL)
	assert.Nil(t, second.Reply.Button)
	assert.Equal(t, "Or here", second.Reply.Text)
}

func TestSendRejectsConcurrentTurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{chat: reply("ok"), block: make(chan struct{})}
	ctrl := newTestController(gw, newMemorySessions(), nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(context.Background(), "first")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return ctrl.Snapshot().Thinking }, timeout, tick)

	_, err := ctrl.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.ErrorIs(t, ctrl.NewChat(), ErrTurnInFlight)

	close(gw.block)
	require.NoError(t, <-errCh)
	ctrl.Wait()

	assert.Len(t, ctrl.Snapshot().Messages, 2)
}

func TestObserverSeesThinkingThenReply(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu        sync.Mutex
		snapshots []State
	)
	gw := &fakeGateway{chat: reply("done")}
	ctrl := NewController(&State{User: "u"}, Config{
		Gateway:  gw,
		Sessions: newMemorySessions(),
		Observer: func(s State) {
			mu.Lock()
			snapshots = append(snapshots, s)
			mu.Unlock()
		},
	})

	_, err := ctrl.Send(context.Background(), "hi")
	require.NoError(t, err)
	ctrl.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(snapshots), 2)
	assert.True(t, snapshots[0].Thinking)
	assert.Equal(t, chat.StatusSending, snapshots[0].Messages[0].Status)
	assert.False(t, snapshots[1].Thinking)
	assert.Len(t, snapshots[1].Messages, 2)
}

func TestDeleteCurrentSessionClearsView(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{chat: reply("ok")}
	store := newMemorySessions()
	ctrl := newTestController(gw, store, nil)

	turn, err := ctrl.Send(context.Background(), "hi")
	require.NoError(t, err)
	ctrl.Wait()

	require.NoError(t, ctrl.DeleteSession(context.Background(), turn.SessionID))

	state := ctrl.Snapshot()
	assert.Empty(t, state.Sessions)
	assert.Empty(t, state.Messages)
	assert.Empty(t, state.CurrentSessionID)
	_, ok, _ := store.get(turn.SessionID)
	assert.False(t, ok)
}

func TestSelectSessionAndNewChat(t *testing.T) {
	ctrl := NewController(&State{
		User:     "u",
		Sessions: []chat.Session{{ID: "s1", Messages: []chat.Message{{ID: "m", Role: chat.RoleUser, Status: chat.StatusSent}}}},
	}, Config{Gateway: &fakeGateway{chat: reply("ok")}})

	require.NoError(t, ctrl.SelectSession("s1"))
	assert.Equal(t, "s1", ctrl.Snapshot().CurrentSessionID)
	assert.Len(t, ctrl.Snapshot().Messages, 1)

	assert.ErrorIs(t, ctrl.SelectSession("nope"), ErrSessionNotFound)

	require.NoError(t, ctrl.NewChat())
	assert.Empty(t, ctrl.Snapshot().CurrentSessionID)
	assert.Empty(t, ctrl.Snapshot().Messages)
}

func TestLoadUserFetchesSessionsAndSettings(t *testing.T) {
	store := newMemorySessions()
	require.NoError(t, store.SaveSession(context.Background(), "u", chat.Session{ID: "s1", Title: "Old"}))

	prefs := settings.UserSettings{Tone: settings.ToneCasual, Language: settings.LanguageRomanUrdu, Theme: settings.ThemeDark}
	ctrl := NewController(nil, Config{
		Gateway:  &fakeGateway{chat: reply("ok")},
		Sessions: store,
		Settings: staticSettings{prefs: prefs},
	})

	require.NoError(t, ctrl.LoadUser(context.Background(), "u"))
	state := ctrl.Snapshot()
	assert.Equal(t, "u", state.User)
	assert.Equal(t, prefs, state.Settings)
	require.Len(t, state.Sessions, 1)
	assert.Equal(t, "Old", state.Sessions[0].Title)

	assert.ErrorIs(t, ctrl.LoadUser(context.Background(), " "), ErrNoUser)
}

func TestUpdateSettingsValidates(t *testing.T) {
	ctrl := NewController(&State{User: "u"}, Config{Gateway: &fakeGateway{chat: reply("ok")}})

	err := ctrl.UpdateSettings(context.Background(), settings.UserSettings{Tone: "shouty"})
	assert.True(t, errors.Is(err, settings.ErrInvalid))

	require.NoError(t, ctrl.UpdateSettings(context.Background(), settings.UserSettings{Tone: settings.ToneCasual}))
	assert.Equal(t, settings.ToneCasual, ctrl.Snapshot().Settings.Tone)
}
