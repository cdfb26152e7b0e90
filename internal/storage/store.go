package storage

import (
	"context"
	"errors"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
	"github.com/zhouzirui/eddez/backend/internal/model/user"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrUserExists   = errors.New("user already exists")
	ErrUserRequired = errors.New("user id is required")
)

// SessionStore keeps each user's saved sessions, newest first.
type SessionStore interface {
	ListSessions(ctx context.Context, userID string) ([]chat.Session, error)
	// SaveSession replaces the session with the same id or adds it.
	SaveSession(ctx context.Context, userID string, session chat.Session) error
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// SettingsStore keeps per-user settings. Unknown users get the defaults.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (settings.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, prefs settings.UserSettings) error
}

// KnowledgeStore keeps the ordered knowledge base.
type KnowledgeStore interface {
	ListKnowledge(ctx context.Context) ([]knowledge.Item, error)
	ReplaceKnowledge(ctx context.Context, items []knowledge.Item) error
}

// UserStore keeps accounts.
type UserStore interface {
	CreateUser(ctx context.Context, account user.Account) error
	FindUser(ctx context.Context, email string) (user.Account, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// Store is the full persistence surface of the proxy server.
type Store interface {
	SessionStore
	SettingsStore
	KnowledgeStore
	UserStore
	Close() error
}
