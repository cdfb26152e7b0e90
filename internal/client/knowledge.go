package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/pubsub"
)

// KnowledgeFetcher loads the current knowledge base.
type KnowledgeFetcher interface {
	ListKnowledge(ctx context.Context) ([]knowledge.Item, error)
}

// KnowledgeCache keeps a local snapshot of the server's knowledge base and
// refreshes it when the server announces an update. It implements
// knowledge.Source; readers always get a copy, so a refresh never changes
// the items a turn already captured.
type KnowledgeCache struct {
	fetcher KnowledgeFetcher
	store   *knowledge.MemoryStore
	logger  *zap.Logger

	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	onUpdate func([]knowledge.Item)
}

var _ knowledge.Source = (*KnowledgeCache)(nil)

// CacheOption customises a KnowledgeCache.
type CacheOption func(*KnowledgeCache)

// WithBackoff bounds the reconnect delay of Watch.
func WithBackoff(minDelay, maxDelay time.Duration) CacheOption {
	return func(c *KnowledgeCache) {
		c.minBackoff = minDelay
		c.maxBackoff = maxDelay
	}
}

// WithDialer replaces the websocket dialer used by Watch.
func WithDialer(d *websocket.Dialer) CacheOption {
	return func(c *KnowledgeCache) {
		c.dialer = d
	}
}

// NewKnowledgeCache creates an empty cache. Call Refresh to populate it.
func NewKnowledgeCache(fetcher KnowledgeFetcher, logger *zap.Logger, opts ...CacheOption) *KnowledgeCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &KnowledgeCache{
		fetcher:    fetcher,
		store:      knowledge.NewMemoryStore(nil),
		logger:     logger.With(zap.String("component", "knowledge-cache")),
		dialer:     websocket.DefaultDialer,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns a copy of the cached items.
func (c *KnowledgeCache) List() []knowledge.Item {
	return c.store.List()
}

// OnUpdate registers fn to be called with the new items after each refresh.
func (c *KnowledgeCache) OnUpdate(fn func([]knowledge.Item)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Refresh re-fetches the knowledge base. On failure the previous snapshot
// is kept.
func (c *KnowledgeCache) Refresh(ctx context.Context) error {
	items, err := c.fetcher.ListKnowledge(ctx)
	if err != nil {
		return err
	}
	c.store.Replace(items)

	c.mu.Lock()
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn(c.store.List())
	}
	c.logger.Debug("knowledge refreshed", zap.Int("items", len(items)))
	return nil
}

// Watch connects to the push channel at wsURL and refreshes on every
// KB_UPDATED event until ctx is cancelled. Lost connections are retried
// with exponential backoff; each successful connect triggers a refresh so
// updates missed while disconnected are picked up.
func (c *KnowledgeCache) Watch(ctx context.Context, wsURL string) error {
	backoff := c.minBackoff
	for {
		err := c.watchOnce(ctx, wsURL, func() { backoff = c.minBackoff })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("push channel lost, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *KnowledgeCache) watchOnce(ctx context.Context, wsURL string, connected func()) error {
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	connected()
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("knowledge refresh failed", zap.Error(err))
	}

	for {
		var evt pubsub.Event
		if err := conn.ReadJSON(&evt); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if evt.Type != pubsub.EventKnowledgeUpdated {
			continue
		}
		if err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("knowledge refresh failed", zap.Error(err))
		}
	}
}
