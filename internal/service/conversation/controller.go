package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/eddez/backend/internal/analysis/escalation"
	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
	"github.com/zhouzirui/eddez/backend/internal/service/interpret"
	"github.com/zhouzirui/eddez/backend/internal/service/prompt"
)

var (
	ErrOffline      = errors.New("no network connectivity")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoUser       = errors.New("no user is loaded")
)

// Completer produces a completion for a rendered message list.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// SessionStore persists a user's saved sessions.
type SessionStore interface {
	ListSessions(ctx context.Context, user string) ([]chat.Session, error)
	SaveSession(ctx context.Context, user string, session chat.Session) error
	DeleteSession(ctx context.Context, user, sessionID string) error
}

// SettingsStore persists per-user settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, user string) (settings.UserSettings, error)
	SaveSettings(ctx context.Context, user string, prefs settings.UserSettings) error
}

// Connectivity reports whether the network is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online(context.Context) bool { return true }

// Observer receives a snapshot after every committed transition. It runs
// while the controller holds its lock and must not call back into it.
type Observer func(State)

// Config wires the controller's collaborators. Composer, Gateway and
// Sessions are required.
type Config struct {
	Composer      *prompt.Composer
	Gateway       Completer
	Knowledge     knowledge.Source
	Sessions      SessionStore
	Settings      SettingsStore
	Connectivity  Connectivity
	Titler        TitleGenerator
	Observer      Observer
	Logger        *zap.Logger
	EffectTimeout time.Duration
	Now           func() time.Time
	NewID         func() string
}

// Turn describes the outcome of one send or retry.
type Turn struct {
	MessageID string
	SessionID string
	Reply     *chat.Reply
}

// Controller drives the send/retry lifecycle over an explicit State.
type Controller struct {
	mu    sync.Mutex
	state *State

	composer      *prompt.Composer
	gateway       Completer
	knowledge     knowledge.Source
	sessions      SessionStore
	settings      SettingsStore
	connectivity  Connectivity
	titler        TitleGenerator
	observer      Observer
	logger        *zap.Logger
	effectTimeout time.Duration
	now           func() time.Time
	newID         func() string

	effects sync.WaitGroup
	tail    chan struct{}
}

// NewController binds a controller to state. The controller owns state from
// here on; read it through Snapshot.
func NewController(state *State, cfg Config) *Controller {
	if state == nil {
		state = &State{}
	}
	if state.Settings == (settings.UserSettings{}) {
		state.Settings = settings.Default()
	}

	c := &Controller{
		state:         state,
		composer:      cfg.Composer,
		gateway:       cfg.Gateway,
		knowledge:     cfg.Knowledge,
		sessions:      cfg.Sessions,
		settings:      cfg.Settings,
		connectivity:  cfg.Connectivity,
		titler:        cfg.Titler,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
		effectTimeout: cfg.EffectTimeout,
		now:           cfg.Now,
		newID:         cfg.NewID,
	}
	if c.composer == nil {
		c.composer = prompt.NewComposer()
	}
	if c.knowledge == nil {
		c.knowledge = knowledge.NewMemoryStore(nil)
	}
	if c.connectivity == nil {
		c.connectivity = alwaysOnline{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", "conversation"))
	if c.titler == nil {
		c.titler = NewTitler(c.gateway, c.logger)
	}
	if c.effectTimeout <= 0 {
		c.effectTimeout = 30 * time.Second
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Send submits a new user message and waits for the assistant's reply.
func (c *Controller) Send(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}
	return c.run(ctx, "", text)
}

// Retry resubmits a failed message with its original id and content.
func (c *Controller) Retry(ctx context.Context, messageID string) (Turn, error) {
	return c.run(ctx, messageID, "")
}

func (c *Controller) run(ctx context.Context, retryID, text string) (Turn, error) {
	c.mu.Lock()
	if c.state.Thinking {
		c.mu.Unlock()
		return Turn{}, ErrTurnInFlight
	}

	id := retryID
	if id == "" {
		id = c.newID()
	} else {
		idx := indexOf(c.state.Messages, id)
		if idx < 0 {
			c.mu.Unlock()
			return Turn{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
		}
		text = c.state.Messages[idx].Content
	}

	next, err := BeginTurn(*c.state, id, text, c.now())
	if err != nil {
		c.mu.Unlock()
		return Turn{}, err
	}

	// A new conversation gets its id now but only enters the session list
	// once a reply arrives.
	sessionID := next.CurrentSessionID
	fresh := sessionID == ""
	if fresh {
		sessionID = c.newID()
	}
	user := next.User
	input := prompt.Input{
		Query:    text,
		History:  HistoryFor(next.Messages, id),
		Settings: next.Settings,
	}
	c.commitLocked(next)
	c.mu.Unlock()

	turn := Turn{MessageID: id, SessionID: sessionID}
	reply, raw, exchangeErr := c.exchange(ctx, input)

	c.mu.Lock()
	defer c.mu.Unlock()

	if exchangeErr != nil {
		c.commitLocked(AbortTurn(*c.state, id))
		c.logger.Warn("turn failed", zap.String("message", id), zap.Error(exchangeErr))
		return turn, exchangeErr
	}

	now := c.now()
	assistant := chat.Message{
		ID:        c.newID(),
		Role:      chat.RoleAssistant,
		Content:   raw,
		Timestamp: now,
		Reply:     reply,
	}
	done, err := CompleteTurn(*c.state, id, assistant, sessionID, now)
	if err != nil {
		c.commitLocked(AbortTurn(*c.state, id))
		c.logger.Error("turn lost its message", zap.String("message", id), zap.Error(err))
		return turn, err
	}
	c.commitLocked(done)

	session, _ := FindSession(done.Sessions, sessionID)
	c.scheduleLocked(ctx, func(ectx context.Context) {
		c.persist(ectx, user, session.Clone(), fresh, text)
	})

	turn.Reply = reply
	return turn, nil
}

// exchange is the network half of a turn: compose, complete, interpret.
func (c *Controller) exchange(ctx context.Context, in prompt.Input) (*chat.Reply, string, error) {
	if !c.connectivity.Online(ctx) {
		return nil, "", ErrOffline
	}
	if c.gateway == nil {
		return nil, "", errors.New("conversation controller has no gateway")
	}

	items := c.knowledge.List()
	in.Knowledge = items

	messages, err := c.composer.Compose(ctx, in)
	if err != nil {
		return nil, "", err
	}

	raw, err := c.gateway.Complete(ctx, messages)
	if err != nil {
		return nil, "", err
	}

	result := interpret.Interpret(raw, items)
	if decision := escalation.Detect(in.Query); decision.Requested {
		result.WantsHumanSupport = true
	}
	return result.Reply(), raw, nil
}

// scheduleLocked queues a persistence effect. Effects run one after another
// in scheduling order so later snapshots of a session always land last.
func (c *Controller) scheduleLocked(parent context.Context, fn func(context.Context)) {
	prev := c.tail
	done := make(chan struct{})
	c.tail = done

	base := context.WithoutCancel(parent)
	c.effects.Add(1)
	go func() {
		defer c.effects.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(base, c.effectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Controller) persist(ctx context.Context, user string, session chat.Session, needsTitle bool, firstMessage string) {
	title := ""
	if needsTitle {
		title = c.titler.Title(ctx, firstMessage)
	}

	c.mu.Lock()
	if c.state.User == user {
		current, ok := FindSession(c.state.Sessions, session.ID)
		if !ok {
			// deleted while the effect was queued
			c.mu.Unlock()
			return
		}
		if title != "" {
			c.commitLocked(SetTitle(*c.state, session.ID, title))
		} else {
			title = current.Title
		}
	}
	c.mu.Unlock()

	if title != "" {
		session.Title = title
	}
	if c.sessions == nil || user == "" {
		return
	}
	if err := c.sessions.SaveSession(ctx, user, session); err != nil {
		c.logger.Error("save session failed",
			zap.String("user", user),
			zap.String("session", session.ID),
			zap.Error(err),
		)
	}
}

// Wait blocks until every scheduled persistence effect has finished.
func (c *Controller) Wait() {
	c.effects.Wait()
}

// NewChat clears the current view so the next send starts a new session.
func (c *Controller) NewChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Thinking {
		return ErrTurnInFlight
	}
	next := c.state.Clone()
	next.CurrentSessionID = ""
	next.Messages = nil
	c.commitLocked(next)
	return nil
}

// SelectSession opens a saved session.
func (c *Controller) SelectSession(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Thinking {
		return ErrTurnInFlight
	}
	session, ok := FindSession(c.state.Sessions, id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	next := c.state.Clone()
	next.CurrentSessionID = session.ID
	next.Messages = append([]chat.Message(nil), session.Messages...)
	c.commitLocked(next)
	return nil
}

// DeleteSession removes a session remotely and from the list. Deleting the
// open session also clears the view.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state.Thinking && c.state.CurrentSessionID == id {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	user := c.state.User
	c.mu.Unlock()

	if c.sessions != nil && user != "" {
		if err := c.sessions.DeleteSession(ctx, user, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	next.Sessions = RemoveSession(next.Sessions, id)
	if next.CurrentSessionID == id {
		next.CurrentSessionID = ""
		next.Messages = nil
	}
	c.commitLocked(next)
	return nil
}

// LoadUser switches to user, fetching their sessions and settings together.
func (c *Controller) LoadUser(ctx context.Context, user string) error {
	user = strings.TrimSpace(user)
	if user == "" {
		return ErrNoUser
	}

	c.mu.Lock()
	thinking := c.state.Thinking
	c.mu.Unlock()
	if thinking {
		return ErrTurnInFlight
	}

	var (
		sessions []chat.Session
		prefs    = settings.Default()
	)
	g, gctx := errgroup.WithContext(ctx)
	if c.sessions != nil {
		g.Go(func() error {
			list, err := c.sessions.ListSessions(gctx, user)
			if err != nil {
				return fmt.Errorf("load sessions: %w", err)
			}
			sessions = list
			return nil
		})
	}
	if c.settings != nil {
		g.Go(func() error {
			loaded, err := c.settings.GetSettings(gctx, user)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			prefs = loaded.WithDefaults()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Thinking {
		return ErrTurnInFlight
	}
	c.commitLocked(State{User: user, Settings: prefs, Sessions: sessions})
	return nil
}

// UpdateSettings validates, persists and applies new settings.
func (c *Controller) UpdateSettings(ctx context.Context, prefs settings.UserSettings) error {
	prefs = prefs.WithDefaults()
	if err := prefs.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	user := c.state.User
	c.mu.Unlock()

	if c.settings != nil && user != "" {
		if err := c.settings.SaveSettings(ctx, user, prefs); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	next.Settings = prefs
	c.commitLocked(next)
	return nil
}

func (c *Controller) commitLocked(next State) {
	*c.state = next
	if c.observer != nil {
		c.observer(next.Clone())
	}
}
